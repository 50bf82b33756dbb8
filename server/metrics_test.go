package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/0xADE/ade-launchd/internal/launcher"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("NewMetricsRouter", func() {
	var session *fakeSession

	BeforeEach(func() {
		session = &fakeSession{status: launcher.Status{State: launcher.StateScanning, Indexing: true}}
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		NewMetricsRouter(session).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	It("reports starting until the first scan completes", func() {
		rec := get("/healthz")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

		var health HealthResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &health)).To(Succeed())
		Expect(health.Status).To(Equal("starting"))
		Expect(health.State).To(Equal("scanning"))
		Expect(health.Indexing).To(BeTrue())
		Expect(health.LastScan).To(BeEmpty())
	})

	It("reports healthy after a scan", func() {
		session.status = launcher.Status{
			State:    launcher.StateIdle,
			Count:    12,
			LastScan: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		}
		var health HealthResponse
		Expect(json.Unmarshal(get("/healthz").Body.Bytes(), &health)).To(Succeed())
		Expect(health).To(Equal(HealthResponse{
			Status:   "healthy",
			State:    "idle",
			Count:    12,
			LastScan: "2026-03-01T12:00:00Z",
		}))
	})

	It("serves prometheus metrics", func() {
		rec := get("/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("go_goroutines"))
	})

	It("only answers GET", func() {
		rec := httptest.NewRecorder()
		NewMetricsRouter(session).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
