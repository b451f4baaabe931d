package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the loop's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	ticks           prometheus.Counter
	tickErrors      prometheus.Counter
	tickDuration    prometheus.Histogram
	dispatches      *prometheus.CounterVec
	handlerDuration prometheus.Histogram
	inFlight        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "ticks_total",
			Help: "Completed polling ticks.",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "tick_errors_total",
			Help: "Ticks aborted because the store could not be reloaded.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "tick_duration_seconds",
			Help:    "Time spent reloading the store and launching due jobs.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "dispatches_total",
			Help: "Handler invocations by outcome.",
		}, []string{"status"}),
		handlerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "handler_duration_seconds",
			Help:    "Handler run time.",
			Buckets: prometheus.DefBuckets,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cronhub", Subsystem: "scheduler", Name: "in_flight",
			Help: "Handlers currently running.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ticks, m.tickErrors, m.tickDuration, m.dispatches, m.handlerDuration, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) tickDone(d time.Duration) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) tickFailed() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

func (m *Metrics) dispatched(err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.dispatches.WithLabelValues(status).Inc()
	m.handlerDuration.Observe(d.Seconds())
}

func (m *Metrics) panicked() {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues("panic").Inc()
}

func (m *Metrics) setInFlight(n int) {
	if m == nil {
		return
	}
	m.inFlight.Set(float64(n))
}
