package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samgozman/fin-calendar/scavenger/ecal"
)

// Metrics is the prometheus implementation of ecal.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	StrategyAttempts *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	LastEventCount   prometheus.Gauge
	LastRun          prometheus.Gauge
}

// New creates the collectors and registers them, with the Go and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		StrategyAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fin_calendar_strategy_attempts_total",
				Help: "Total number of resolver strategy attempts",
			},
			[]string{"strategy", "outcome"}, // outcome: success|failure
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fin_calendar_http_requests_total",
				Help: "Total number of outbound HTTP attempts",
			},
			[]string{"status"}, // HTTP status code or "error"
		),

		PipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fin_calendar_pipeline_duration_seconds",
				Help:    "Calendar fetch duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		LastEventCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fin_calendar_last_event_count",
				Help: "Number of events returned by the last calendar fetch",
			},
		),

		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fin_calendar_last_run_timestamp",
				Help: "Unix timestamp of the last calendar fetch",
			},
		),
	}

	m.registry.MustRegister(
		m.StrategyAttempts,
		m.HTTPRequests,
		m.PipelineDuration,
		m.LastEventCount,
		m.LastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveStrategy implements ecal.Metrics.
func (m *Metrics) ObserveStrategy(s ecal.Strategy, outcome string) {
	m.StrategyAttempts.WithLabelValues(string(s), outcome).Inc()
}

// ObserveRequest implements ecal.Metrics.
func (m *Metrics) ObserveRequest(status string) {
	m.HTTPRequests.WithLabelValues(status).Inc()
}

// ObservePipeline implements ecal.Metrics.
func (m *Metrics) ObservePipeline(d time.Duration, events int) {
	m.PipelineDuration.Observe(d.Seconds())
	m.LastEventCount.Set(float64(events))
	m.LastRun.SetToCurrentTime()
}

// Handler returns the exposition handler of the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
