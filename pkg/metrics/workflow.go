package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics counts state transitions and times workflow transactions.
type WorkflowMetrics struct {
	transitions *prometheus.CounterVec
	txDuration  *prometheus.HistogramVec
	txOutcome   *prometheus.CounterVec
}

// NewWorkflowMetrics registers the workflow metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	if reg == nil {
		return &WorkflowMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Committed status transitions by entity and target status.",
	}, []string{"entity", "status"})
	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workflow_tx_duration_seconds",
		Help:    "Duration of workflow transactions in seconds.",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"operation"})
	txOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_tx_total",
		Help: "Workflow transactions by operation and outcome code.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(transitions, txDuration, txOutcome)
	return &WorkflowMetrics{
		transitions: transitions,
		txDuration:  txDuration,
		txOutcome:   txOutcome,
	}
}

// IncTransition records a committed transition of entity into status.
func (w *WorkflowMetrics) IncTransition(entity, status string) {
	if w == nil || w.transitions == nil {
		return
	}
	w.transitions.WithLabelValues(normalizeLabel(entity), normalizeLabel(status)).Inc()
}

// ObserveTx records how long operation took and how it ended. An empty
// outcome is reported as "ok".
func (w *WorkflowMetrics) ObserveTx(operation string, duration time.Duration, outcome string) {
	if w == nil || w.txDuration == nil {
		return
	}
	if outcome == "" {
		outcome = "ok"
	}
	w.txDuration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
	w.txOutcome.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}
