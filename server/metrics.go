package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xADE/ade-launchd/internal/logging"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse is served on /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	State    string `json:"state"`
	Indexing bool   `json:"indexing"`
	Count    int    `json:"count"`
	LastScan string `json:"lastScan,omitempty"`
}

// NewMetricsRouter exposes /metrics and /healthz.
func NewMetricsRouter(session Session) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := session.Status()
		resp := HealthResponse{
			Status:   statusHealthy,
			State:    st.State.String(),
			Indexing: st.Indexing,
			Count:    st.Count,
		}
		if st.LastScan.IsZero() {
			resp.Status = statusStarting
		} else {
			resp.LastScan = st.LastScan.Format(time.RFC3339)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logging.Debug("Failed to encode health response: %v", err)
		}
	}).Methods("GET")
	return r
}

// ServeMetrics serves the metrics router on addr until ctx is done.
func ServeMetrics(ctx context.Context, addr string, session Session) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMetricsRouter(session),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}()

	logging.Info("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
