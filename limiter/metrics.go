/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-sawtooth/internal/libinfo"
)

const metricsLabelLimiter = "limiter"

// MetricsCollector represents collector of metrics for adaptive concurrency limiters.
// One collector may be shared by many limiters, they are distinguished by the "limiter" label (Opts.Name).
type MetricsCollector struct {
	ConcurrencyLimit    *prometheus.GaugeVec
	SlowStartThreshold  *prometheus.GaugeVec
	InFlightOperations  *prometheus.GaugeVec
	WaitingOperations   *prometheus.GaugeVec
	LimitIncreases      *prometheus.CounterVec
	LimitDecreases      *prometheus.CounterVec
	IgnoredBackpressure *prometheus.CounterVec
	CanceledWaits       *prometheus.CounterVec
}

// NewMetricsCollector creates a new instance of MetricsCollector.
// All metrics carry the module version as a constant label.
func NewMetricsCollector(namespace string) *MetricsCollector {
	labels := []string{metricsLabelLimiter}
	constLabels := libinfo.PrometheusConstLabels(nil)
	return &MetricsCollector{
		ConcurrencyLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sawtooth_concurrency_limit",
			Help:        "Current concurrency limit.",
			ConstLabels: constLabels,
		}, labels),
		SlowStartThreshold: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sawtooth_slow_start_threshold",
			Help:        "Current slow-start threshold.",
			ConstLabels: constLabels,
		}, labels),
		InFlightOperations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sawtooth_in_flight_operations",
			Help:        "Number of admitted and not yet released operations.",
			ConstLabels: constLabels,
		}, labels),
		WaitingOperations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "sawtooth_waiting_operations",
			Help:        "Number of operations waiting for admission.",
			ConstLabels: constLabels,
		}, labels),
		LimitIncreases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sawtooth_limit_increases_total",
			Help:        "Number of times the concurrency limit was increased.",
			ConstLabels: constLabels,
		}, labels),
		LimitDecreases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sawtooth_limit_decreases_total",
			Help:        "Number of times the concurrency limit was decreased due to backpressure.",
			ConstLabels: constLabels,
		}, labels),
		IgnoredBackpressure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sawtooth_ignored_backpressure_total",
			Help:        "Number of backpressure signals ignored because the limit was already decreased for them.",
			ConstLabels: constLabels,
		}, labels),
		CanceledWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sawtooth_canceled_waits_total",
			Help:        "Number of operations whose context was done while waiting for admission.",
			ConstLabels: constLabels,
		}, labels),
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (mc *MetricsCollector) MustCurryWith(labels prometheus.Labels) *MetricsCollector {
	return &MetricsCollector{
		ConcurrencyLimit:    mc.ConcurrencyLimit.MustCurryWith(labels),
		SlowStartThreshold:  mc.SlowStartThreshold.MustCurryWith(labels),
		InFlightOperations:  mc.InFlightOperations.MustCurryWith(labels),
		WaitingOperations:   mc.WaitingOperations.MustCurryWith(labels),
		LimitIncreases:      mc.LimitIncreases.MustCurryWith(labels),
		LimitDecreases:      mc.LimitDecreases.MustCurryWith(labels),
		IgnoredBackpressure: mc.IgnoredBackpressure.MustCurryWith(labels),
		CanceledWaits:       mc.CanceledWaits.MustCurryWith(labels),
	}
}

func (mc *MetricsCollector) allMetrics() []prometheus.Collector {
	return []prometheus.Collector{
		mc.ConcurrencyLimit,
		mc.SlowStartThreshold,
		mc.InFlightOperations,
		mc.WaitingOperations,
		mc.LimitIncreases,
		mc.LimitDecreases,
		mc.IgnoredBackpressure,
		mc.CanceledWaits,
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (mc *MetricsCollector) MustRegister() {
	prometheus.MustRegister(mc.allMetrics()...)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (mc *MetricsCollector) Unregister() {
	for _, m := range mc.allMetrics() {
		prometheus.Unregister(m)
	}
}

func (mc *MetricsCollector) deleteLimiter(name string) {
	labels := prometheus.Labels{metricsLabelLimiter: name}
	mc.ConcurrencyLimit.Delete(labels)
	mc.SlowStartThreshold.Delete(labels)
	mc.InFlightOperations.Delete(labels)
	mc.WaitingOperations.Delete(labels)
	mc.LimitIncreases.Delete(labels)
	mc.LimitDecreases.Delete(labels)
	mc.IgnoredBackpressure.Delete(labels)
	mc.CanceledWaits.Delete(labels)
}

// limiterMetrics holds metrics already bound to a single limiter. Zero value discards everything.
type limiterMetrics struct {
	concurrencyLimit    prometheus.Gauge
	slowStartThreshold  prometheus.Gauge
	inFlightOperations  prometheus.Gauge
	waitingOperations   prometheus.Gauge
	limitIncreases      prometheus.Counter
	limitDecreases      prometheus.Counter
	ignoredBackpressure prometheus.Counter
	canceledWaits       prometheus.Counter
}

func newLimiterMetrics(mc *MetricsCollector, name string) *limiterMetrics {
	if mc == nil {
		return nil
	}
	labels := prometheus.Labels{metricsLabelLimiter: name}
	return &limiterMetrics{
		concurrencyLimit:    mc.ConcurrencyLimit.With(labels),
		slowStartThreshold:  mc.SlowStartThreshold.With(labels),
		inFlightOperations:  mc.InFlightOperations.With(labels),
		waitingOperations:   mc.WaitingOperations.With(labels),
		limitIncreases:      mc.LimitIncreases.With(labels),
		limitDecreases:      mc.LimitDecreases.With(labels),
		ignoredBackpressure: mc.IgnoredBackpressure.With(labels),
		canceledWaits:       mc.CanceledWaits.With(labels),
	}
}

func (m *limiterMetrics) observeState(concurrency, threshold float64, inFlight, waiting int) {
	if m == nil {
		return
	}
	m.concurrencyLimit.Set(concurrency)
	m.slowStartThreshold.Set(threshold)
	m.inFlightOperations.Set(float64(inFlight))
	m.waitingOperations.Set(float64(waiting))
}

func (m *limiterMetrics) incLimitIncreases() {
	if m != nil {
		m.limitIncreases.Inc()
	}
}

func (m *limiterMetrics) incLimitDecreases() {
	if m != nil {
		m.limitDecreases.Inc()
	}
}

func (m *limiterMetrics) incIgnoredBackpressure() {
	if m != nil {
		m.ignoredBackpressure.Inc()
	}
}

func (m *limiterMetrics) incCanceledWaits() {
	if m != nil {
		m.canceledWaits.Inc()
	}
}
