package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the state engine.
type Metrics struct {
	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration prometheus.Histogram
	RulesEvaluated      prometheus.Counter
	AlertsEmitted       *prometheus.CounterVec
	EntitiesByState     *prometheus.GaugeVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CalculationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyflow_calculations_total",
			Help: "Compliance state calculations by trigger and result.",
		}, []string{"trigger", "result"}),
		CalculationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "complyflow_calculation_duration_seconds",
			Help:    "Wall time of a full state calculation.",
			Buckets: prometheus.DefBuckets,
		}),
		RulesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "complyflow_rules_evaluated_total",
			Help: "Individual rule evaluations performed.",
		}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "complyflow_alerts_emitted_total",
			Help: "Compliance alerts emitted by type.",
		}, []string{"type"}),
		EntitiesByState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "complyflow_entities_by_state",
			Help: "Entities currently in each overall compliance state.",
		}, []string{"state"}),
	}
}
