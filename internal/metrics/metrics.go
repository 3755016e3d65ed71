package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for InvocationsTotal.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeUnknownDataset  = "unknown_dataset"
	OutcomeDivisionByZero  = "division_by_zero"
	OutcomeFailed          = "failed"
)

// Metrics represents the collection of all Prometheus metrics
type Metrics struct {
	Registry *prometheus.Registry

	InvocationsTotal *prometheus.CounterVec
	PlannedDelay     *prometheus.HistogramVec
	ObservedDelay    *prometheus.HistogramVec
	SleepOverrun     *prometheus.HistogramVec
	SweepCases       prometheus.Counter
}

// NewMetrics creates all metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.InvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delaycalc",
			Name:      "invocations_total",
			Help:      "Total number of delay invocations by outcome",
		},
		[]string{"variant", "outcome"},
	)

	buckets := prometheus.ExponentialBuckets(0.001, 2, 12)

	m.PlannedDelay = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delaycalc",
			Name:      "planned_delay_seconds",
			Help:      "Per-unit delay the process was asked to sleep",
			Buckets:   buckets,
		},
		[]string{"variant", "dataset"},
	)

	m.ObservedDelay = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delaycalc",
			Name:      "observed_delay_seconds",
			Help:      "Wall-clock time actually spent sleeping",
			Buckets:   buckets,
		},
		[]string{"variant", "dataset"},
	)

	m.SleepOverrun = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delaycalc",
			Name:      "sleep_overrun_seconds",
			Help:      "Observed minus planned delay",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
		[]string{"variant"},
	)

	m.SweepCases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "delaycalc",
			Name:      "sweep_cases_total",
			Help:      "Total number of sweep cases executed",
		},
	)

	m.Registry.MustRegister(
		m.InvocationsTotal,
		m.PlannedDelay,
		m.ObservedDelay,
		m.SleepOverrun,
		m.SweepCases,
	)

	return m
}

// ObserveSleep records one completed sleep.
func (m *Metrics) ObserveSleep(variant, dataset string, planned, observed float64) {
	m.PlannedDelay.WithLabelValues(variant, dataset).Observe(planned)
	m.ObservedDelay.WithLabelValues(variant, dataset).Observe(observed)
	overrun := observed - planned
	if overrun < 0 {
		overrun = 0
	}
	m.SleepOverrun.WithLabelValues(variant).Observe(overrun)
}

// CountInvocation increments the invocation counter.
func (m *Metrics) CountInvocation(variant, outcome string) {
	m.InvocationsTotal.WithLabelValues(variant, outcome).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
