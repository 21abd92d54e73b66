// Package metrics holds the prometheus collectors of the proxy and the relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zenix/internal/application/port/output"
)

var _ output.RelayMetrics = (*Metrics)(nil)

type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StreamsActive   prometheus.Gauge
	FramesSent      *prometheus.CounterVec
	RateLimited     prometheus.Counter

	// Relay metrics
	RelayStarted  prometheus.Counter
	RelayChunks   prometheus.Counter
	RelayOutcomes *prometheus.CounterVec
	RelayDuration prometheus.Histogram
}

// New registers every collector on a fresh registry, so several instances
// can live in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenix_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zenix_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, streams included",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"route"},
		),
		StreamsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "zenix_streams_active",
				Help: "Number of SSE streams being written",
			},
		),
		FramesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenix_stream_frames_total",
				Help: "UI message stream frames written, by type",
			},
			[]string{"type"},
		),
		RateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenix_rate_limited_total",
				Help: "Stream requests rejected by the rate limiter",
			},
		),

		RelayStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenix_relay_streams_total",
				Help: "Relay runs started",
			},
		),
		RelayChunks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "zenix_relay_chunks_total",
				Help: "streamChunk notifications published",
			},
		),
		RelayOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zenix_relay_outcomes_total",
				Help: "Relay runs by terminal outcome",
			},
			[]string{"result"},
		),
		RelayDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zenix_relay_duration_seconds",
				Help:    "Relay run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(route, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) StreamStarted() {
	m.RelayStarted.Inc()
}

func (m *Metrics) ChunkPublished() {
	m.RelayChunks.Inc()
}

func (m *Metrics) StreamFinished(result string, elapsed time.Duration) {
	m.RelayOutcomes.WithLabelValues(result).Inc()
	m.RelayDuration.Observe(elapsed.Seconds())
}
