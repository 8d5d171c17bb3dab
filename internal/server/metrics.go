package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "countdown"

// Metrics are the worker's Prometheus collectors.
type Metrics struct {
	Ticks         prometheus.Counter
	Expirations   *prometheus.CounterVec
	CycleFailures *prometheus.CounterVec
	Timers        *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ticks_total",
			Help:      "Number of completed tick cycles.",
		}),
		Expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "expirations_total",
			Help:      "Number of timer expiries.",
		}, []string{"loop"}),
		CycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_failures_total",
			Help:      "Number of cycles aborted by a storage error.",
		}, []string{"stage"}),
		Timers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "timers",
			Help:      "Number of stored timers.",
		}, []string{"active"}),
	}

	if reg != nil {
		reg.MustRegister(m.Ticks, m.Expirations, m.CycleFailures, m.Timers)
	}

	return m
}

func (m *Metrics) observeExpiry(loop bool) {
	if m == nil {
		return
	}
	m.Expirations.WithLabelValues(strconv.FormatBool(loop)).Inc()
}

func (m *Metrics) observeFailure(stage string) {
	if m == nil {
		return
	}
	m.CycleFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) observeTick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

func (m *Metrics) observeTimers(active, inactive int) {
	if m == nil {
		return
	}
	m.Timers.WithLabelValues("true").Set(float64(active))
	m.Timers.WithLabelValues("false").Set(float64(inactive))
}
