// Package metrics exposes Prometheus instruments for the transaction
// pipeline. Instruments are registered on a caller-supplied registerer;
// library code never touches the global registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels for executions.
const (
	ResultSuccess = "success"
)

// Pipeline holds the pipeline instruments. A nil *Pipeline is valid and
// records nothing.
type Pipeline struct {
	executions   *prometheus.CounterVec
	pollAttempts prometheus.Counter
	finality     prometheus.Histogram
	queries      *prometheus.CounterVec
}

// NewPipeline creates the instruments and registers them on reg. A nil
// reg creates unregistered instruments.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	f := promauto.With(reg)
	return &Pipeline{
		executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pulse",
				Subsystem: "pipeline",
				Name:      "executions_total",
				Help:      "State-mutating pipeline executions by call and result",
			},
			[]string{"call", "result"},
		),
		pollAttempts: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: "pulse",
				Subsystem: "pipeline",
				Name:      "poll_attempts_total",
				Help:      "Transaction status queries issued while awaiting finality",
			},
		),
		finality: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "pulse",
				Subsystem: "pipeline",
				Name:      "finality_seconds",
				Help:      "Time from submission to a terminal transaction status",
				Buckets:   []float64{0.5, 1, 2, 4, 6, 10, 15, 30, 60},
			},
		),
		queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pulse",
				Subsystem: "pipeline",
				Name:      "queries_total",
				Help:      "Read-only simulated queries by call and result",
			},
			[]string{"call", "result"},
		),
	}
}

// Execution records the result of one mutating pipeline run.
func (m *Pipeline) Execution(call, result string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(call, result).Inc()
}

// Query records the result of one read-only query.
func (m *Pipeline) Query(call, result string) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(call, result).Inc()
}

// PollAttempt records one status query.
func (m *Pipeline) PollAttempt() {
	if m == nil {
		return
	}
	m.pollAttempts.Inc()
}

// Finality records the time a transaction took to reach a terminal
// status.
func (m *Pipeline) Finality(d time.Duration) {
	if m == nil {
		return
	}
	m.finality.Observe(d.Seconds())
}
