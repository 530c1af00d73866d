// Command assetmirror runs the asset mirror as a long-lived process: it
// hydrates the local store from the configured snapshot backend, performs an
// initial synchronization against the remote asset service, and then serves
// cache observability endpoints until interrupted.
//
// Configuration is environment-driven:
//
//	ASSETMIRROR_BASE_URL: remote asset service base URL (required)
//	ASSETMIRROR_TTL: freshness window, Go duration (default 1h)
//	ASSETMIRROR_LISTEN: observability listen address (default :6060)
//	ASSETMIRROR_SNAPSHOT_DRIVER and friends: see internal/persist/driver
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetmirror/internal/bulk"
	"assetmirror/internal/metrics"
	"assetmirror/internal/persist"
	"assetmirror/internal/persist/driver"
	"assetmirror/internal/remote"
	"assetmirror/internal/store"
	"assetmirror/internal/syncer"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(logger); err != nil {
		logger.Error("assetmirror exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := os.Getenv("ASSETMIRROR_BASE_URL")
	if baseURL == "" {
		return fmt.Errorf("ASSETMIRROR_BASE_URL required")
	}
	ttl := store.DefaultTTL
	if raw := os.Getenv("ASSETMIRROR_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse ASSETMIRROR_TTL: %w", err)
		}
		ttl = parsed
	}
	listen := os.Getenv("ASSETMIRROR_LISTEN")
	if listen == "" {
		listen = ":6060"
	}

	reg := prometheus.NewRegistry()
	recorder := metrics.Tee(
		metrics.NewPromRecorder(reg),
		metrics.NewExpvarRecorder("assetmirror"),
	)

	backend, err := driver.Open(ctx)
	if err != nil {
		return fmt.Errorf("open snapshot backend: %w", err)
	}
	defer closeBackend(backend, logger)

	st := store.New(store.Config{TTL: ttl, Logger: logger})
	bridge := persist.New(persist.Config{Backend: backend, Metrics: recorder, Logger: logger})
	if err := bridge.Hydrate(ctx, st); err != nil {
		return fmt.Errorf("hydrate store: %w", err)
	}

	client, err := remote.NewHTTPClient(baseURL, nil)
	if err != nil {
		return fmt.Errorf("remote client: %w", err)
	}
	facade := syncer.New(syncer.Config{Store: st, Client: client, Metrics: recorder, Logger: logger})
	poller := bulk.New(bulk.Config{
		Store:  st,
		Client: client,
		Refresher: bulk.RefresherFunc(func(ctx context.Context) error {
			_, err := facade.ReadList(ctx, syncer.ListQuery{})
			return err
		}),
		Logger: logger,
	})
	defer poller.Cancel()

	if _, err := facade.ReadList(ctx, syncer.ListQuery{}); err != nil {
		// A cold start without the remote reachable is survivable; reads
		// will retry the fetch once callers arrive.
		logger.Warn("initial sync failed", "error", err)
	} else {
		logger.Info("mirror synchronized", "records", st.Len())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("observability endpoints up", "addr", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("observability server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func closeBackend(backend persist.Backend, logger *slog.Logger) {
	if closer, ok := backend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Warn("close snapshot backend", "error", err)
		}
	}
}
