package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kestrelops/kestrel/pkg/logger"
	"github.com/kestrelops/kestrel/pkg/metrics"
)

type countingRecorder struct{ requests int }

func (c *countingRecorder) IncRequests()                    { c.requests++ }
func (c *countingRecorder) IncIngest()                      {}
func (c *countingRecorder) IncAction(_, _, _ string)        {}
func (c *countingRecorder) IncPolicyEvaluation(_, _ string) {}
func (c *countingRecorder) SetQueueLength(_ int)            {}
func (c *countingRecorder) IncQueueOp(_ string)             {}
func (c *countingRecorder) IncWorkerTask(_ string)          {}
func (c *countingRecorder) SetWorkerActive(_ int)           {}

var _ metrics.Recorder = (*countingRecorder)(nil)

func TestHealthzReportsHealthyWithNoDeps(t *testing.T) {
	srv := New(DefaultConfig(), prometheus.NewRegistry(), logger.NewDefault(), nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHealthzReportsUnhealthyWhenADependencyFails(t *testing.T) {
	srv := New(DefaultConfig(), prometheus.NewRegistry(), logger.NewDefault(), nil, Dependency{
		Name:  "queue",
		Check: func() error { return errors.New("unreachable") },
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total"})
	registry.MustRegister(counter)
	counter.Inc()

	srv := New(DefaultConfig(), registry, logger.NewDefault(), nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_total 1") {
		t.Errorf("expected metrics body to contain test_total, got: %s", rec.Body.String())
	}
}

func TestEveryRequestIncrementsTheRequestCounter(t *testing.T) {
	counting := &countingRecorder{}
	srv := New(DefaultConfig(), prometheus.NewRegistry(), logger.NewDefault(), counting)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if counting.requests != 1 {
		t.Fatalf("requests = %d, want 1", counting.requests)
	}
}
