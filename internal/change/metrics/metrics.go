package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus metrics.
type Metrics struct {
	Decisions           *prometheus.CounterVec
	AttributeRejections *prometheus.CounterVec
	MergeConflicts      prometheus.Counter
	DuplicateSuspects   prometheus.Histogram
}

// New creates and registers the engine metrics.
func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_change_decisions_total",
			Help: "Change requests decided, by operation and overall status.",
		}, []string{"operation", "status"}),
		AttributeRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civreg_attribute_rejections_total",
			Help: "Per-attribute rejections, by status code.",
		}, []string{"code"}),
		MergeConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civreg_merge_conflicts_total",
			Help: "Merge arbitrations reported as incomparable.",
		}),
		DuplicateSuspects: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civreg_duplicate_suspects",
			Help:    "Suspects found per duplicate evaluation.",
			Buckets: []float64{0, 1, 2, 5, 10, 25},
		}),
	}
}

// ObserveDecision records one decided request.
func (m *Metrics) ObserveDecision(operation, status string) {
	m.Decisions.WithLabelValues(operation, status).Inc()
}

// ObserveRejection records one refused attribute.
func (m *Metrics) ObserveRejection(code string) {
	m.AttributeRejections.WithLabelValues(code).Inc()
}
