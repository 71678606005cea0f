// Package httpapi is the control plane's debug/observability surface: only
// GET /healthz and GET /metrics. It deliberately does not expose a CRUD API
// over policies or action records — that surface is out of scope; policy
// changes go through the declarative reload path instead.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"
)

// Dependency is a named liveness probe registered against /healthz.
type Dependency struct {
	Name  string
	Check func() error
}

// Config controls the debug server's listen address and per-request
// timeout.
type Config struct {
	Addr           string
	RequestTimeout time.Duration
}

// DefaultConfig returns conservative defaults for the debug server.
func DefaultConfig() Config {
	return Config{Addr: ":9090", RequestTimeout: 5 * time.Second}
}

// New builds the debug/health http.Server. registry is the Prometheus
// registry to serve at /metrics (normally metrics.Registry); deps are
// liveness checks run on every /healthz request. A nil rec is replaced
// with metrics.Prom{}, the package-level recorder backing registry.
func New(cfg Config, registry *prometheus.Registry, log *logger.Logger, rec metrics.Recorder, deps ...Dependency) *http.Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if rec == nil {
		rec = metrics.Prom{}
	}

	checker := newHealthChecker()
	for _, d := range deps {
		checker.register(d.Name, d.Check)
	}

	r := chi.NewRouter()
	r.Use(recoverPanic(log))
	r.Use(requestLogging(log))
	r.Use(requestMetrics(rec))
	r.Use(requestTimeout(cfg.RequestTimeout))

	r.Get("/healthz", checker.handler())
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Shutdown is a thin context-bounded wrapper around http.Server.Shutdown,
// kept here so callers don't need to import net/http just to drain this
// server gracefully.
func Shutdown(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
