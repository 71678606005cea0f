// Package metrics exposes the read-only observability counters named in
// the control plane, collected on a dedicated Prometheus registry so the debug
// server's /metrics endpoint never leaks Go-runtime defaults a scrape
// config doesn't expect.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector this package registers.
var Registry = prometheus.NewRegistry()

var (
	requestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "requests_total",
		Help:      "Total number of requests handled by the debug/health server.",
	})

	ingestTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "ingest_total",
		Help:      "Total number of metric samples ingested.",
	})

	actionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "actions_total",
		Help:      "Total number of action records by target, action, and terminal status.",
	}, []string{"target", "action", "status"})

	policyEvaluationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "policy_evaluation_total",
		Help:      "Total number of policy evaluations by policy name and result (violation|skip|cooldown).",
	}, []string{"policy_name", "result"})

	queueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kestrel",
		Name:      "queue_length",
		Help:      "Current advisory length of the remediation queue.",
	})

	queueOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "queue_operations_total",
		Help:      "Total number of queue operations by op (enqueue|dequeue|timeout).",
	}, []string{"op"})

	workerTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kestrel",
		Name:      "worker_tasks_total",
		Help:      "Total number of tasks processed by workers, by terminal status.",
	}, []string{"status"})

	workerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kestrel",
		Name:      "worker_active",
		Help:      "Current number of workers executing a dispatch.",
	})
)

func init() {
	Registry.MustRegister(
		requestsTotal,
		ingestTotal,
		actionsTotal,
		policyEvaluationTotal,
		queueLength,
		queueOperationsTotal,
		workerTasksTotal,
		workerActive,
	)
}

// Recorder is the narrow interface the core uses to report counters,
// kept separate from the global Prometheus vars so tests can substitute a
// no-op or an assertion-friendly fake without touching global state.
type Recorder interface {
	IncRequests()
	IncIngest()
	IncAction(target, action, status string)
	IncPolicyEvaluation(policyName, result string)
	SetQueueLength(n int)
	IncQueueOp(op string)
	IncWorkerTask(status string)
	SetWorkerActive(n int)
}

// Prom is the Recorder backed by the package-level Prometheus registry.
type Prom struct{}

func (Prom) IncRequests() { requestsTotal.Inc() }
func (Prom) IncIngest()   { ingestTotal.Inc() }
func (Prom) IncAction(target, action, status string) {
	actionsTotal.WithLabelValues(target, action, status).Inc()
}
func (Prom) IncPolicyEvaluation(policyName, result string) {
	policyEvaluationTotal.WithLabelValues(policyName, result).Inc()
}
func (Prom) SetQueueLength(n int)    { queueLength.Set(float64(n)) }
func (Prom) IncQueueOp(op string)    { queueOperationsTotal.WithLabelValues(op).Inc() }
func (Prom) IncWorkerTask(status string) {
	workerTasksTotal.WithLabelValues(status).Inc()
}
func (Prom) SetWorkerActive(n int) { workerActive.Set(float64(n)) }

// Noop discards every observation; used where a Recorder is required but
// metrics are not under test.
type Noop struct{}

func (Noop) IncRequests()                              {}
func (Noop) IncIngest()                                 {}
func (Noop) IncAction(_, _, _ string)                   {}
func (Noop) IncPolicyEvaluation(_, _ string)            {}
func (Noop) SetQueueLength(_ int)                       {}
func (Noop) IncQueueOp(_ string)                        {}
func (Noop) IncWorkerTask(_ string)                     {}
func (Noop) SetWorkerActive(_ int)                      {}

var _ Recorder = Prom{}
var _ Recorder = Noop{}
