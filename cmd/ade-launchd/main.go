package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/0xADE/ade-launchd/internal/config"
	"github.com/0xADE/ade-launchd/internal/iconcache"
	"github.com/0xADE/ade-launchd/internal/indexer"
	"github.com/0xADE/ade-launchd/internal/launcher"
	"github.com/0xADE/ade-launchd/internal/logging"
	"github.com/0xADE/ade-launchd/internal/platform"
	"github.com/0xADE/ade-launchd/internal/runindex"
	"github.com/0xADE/ade-launchd/server"
)

// sessionRescanner routes watcher rescans through the session so its state
// and results follow the new scan.
type sessionRescanner struct {
	session *launcher.Session
}

func (r sessionRescanner) StartScan(context.Context) <-chan struct{} {
	return r.session.Rescan()
}

func main() {
	// Initialize configuration
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}

	// Start config watcher
	if err := config.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	settings := cfg.Settings()

	env := platform.OptionsFromEnv(cfg.PathDirs(), cfg.ScanPath())
	icons, err := iconcache.New(cfg.IconDir(), settings.IconSize, iconcache.NewThemeExtractor(platform.DataDirs(env)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create icon cache: %v\n", err)
		os.Exit(1)
	}

	scanner := indexer.NewScanner(platform.Roots(env), icons, cfg.Workers(), cfg.Lang())
	store := indexer.NewStore(scanner, cfg.SnapshotPath())

	// Launch counts are optional: the daemon runs without them.
	var (
		runs   *runindex.RunIndex
		counts server.Frequencies
		opts   = launcher.Options{
			EnableCache: settings.EnableCache,
			MaxResults:  func() int { return config.Get().Settings().MaxResults },
		}
	)
	if runs, err = runindex.NewRunIndexWithCacheDir(cfg.CacheDir()); err != nil {
		logging.Warn("Run index unavailable: %v", err)
	} else {
		counts = runs
		opts.Counter = runs
	}

	session := launcher.NewSession(store, launcher.XDGOpener{}, opts)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.NewServer(session, counts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	session.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if cfg.Watch() {
		w, err := indexer.NewWatcher(sessionRescanner{session}, scanner.Roots(), indexer.DefaultDebounce)
		if err != nil {
			logging.Warn("Directory watcher disabled: %v", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}
	if addr := cfg.MetricsAddr(); addr != "" {
		g.Go(func() error { return server.ServeMetrics(gctx, addr, session) })
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logging.Info("ade-launchd listening on %s (%d roots, icons in %s)", srv.Addr(), len(scanner.Roots()), icons.Dir())

	errc := make(chan error, 1)
	go func() { errc <- g.Wait() }()

	exitCode := 0
	select {
	case sig := <-sigChan:
		logging.Info("Received signal: %v", sig)
	case <-gctx.Done():
	}
	cancel()
	if err := srv.Stop(); err != nil {
		logging.Warn("Error stopping server: %v", err)
	}
	if err := <-errc; err != nil {
		logging.Error("Daemon error: %v", err)
		exitCode = 1
	}

	store.Close()
	if runs != nil {
		if err := runs.Close(); err != nil {
			logging.Warn("Error closing run index: %v", err)
		}
	}

	logging.Info("ade-launchd stopped")
	os.Exit(exitCode)
}
