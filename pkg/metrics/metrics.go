// Package metrics exposes prometheus metrics of the reconciliation driver. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "hierarchy"

	// ResultSuccess signifies that an operation has finished successfully.
	ResultSuccess = "success"
	// ResultFailure signifies that an operation has failed.
	ResultFailure = "failure"
	// ResultTransient signifies that an apply failed and may be retried.
	ResultTransient = "transient"
	// ResultPermanent signifies that an apply failed and must not be retried.
	ResultPermanent = "permanent"
)

type Metrics struct {
	reconciles     *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	applies        *prometheus.CounterVec
	applyDuration  prometheus.Histogram
	targets        *prometheus.GaugeVec
	superseded     prometheus.Counter
}

// New creates the driver metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "reconcile_total",
			Help:      "Number of completed intent reconciliations by render mode and resulting status.",
		}, []string{"mode", "status"}),
		renderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Duration of intent evaluations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "result"}),
		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "apply_total",
			Help:      "Number of apply attempts by result.",
		}, []string{"result"}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "apply_duration_seconds",
			Help:      "Duration of apply attempts.",
			Buckets:   prometheus.DefBuckets,
		}),
		targets: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "targets",
			Help:      "Number of targets of an intent by status as of the last reconciliation.",
		}, []string{"intent", "status"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "superseded_total",
			Help:      "Number of reconciliation cycles dropped because a newer intent revision arrived.",
		}),
	}
	reg.MustRegister(m.reconciles, m.renderDuration, m.applies, m.applyDuration, m.targets, m.superseded)
	return m
}

func (m *Metrics) ObserveReconcile(mode string, status string) {
	if m == nil {
		return
	}
	m.reconciles.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) ObserveRender(mode string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if failed {
		result = ResultFailure
	}
	m.renderDuration.WithLabelValues(mode, result).Observe(duration.Seconds())
}

func (m *Metrics) ObserveApply(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.applies.WithLabelValues(result).Inc()
	m.applyDuration.Observe(duration.Seconds())
}

// SetTargets replaces the per status target counts of the intent
func (m *Metrics) SetTargets(intent string, counts map[string]int) {
	if m == nil {
		return
	}
	m.targets.DeletePartialMatch(prometheus.Labels{"intent": intent})
	for status, count := range counts {
		m.targets.WithLabelValues(intent, status).Set(float64(count))
	}
}

func (m *Metrics) ObserveSuperseded() {
	if m == nil {
		return
	}
	m.superseded.Inc()
}
