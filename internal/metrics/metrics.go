// Package metrics provides Prometheus metrics for the schema server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "k8schema"

// Metrics holds every collector the server exports, registered on its own
// registry so that tests can build as many instances as they need.
type Metrics struct {
	Registry *prometheus.Registry

	// RefreshTotal counts refresh cycles by result ("success" or "failure").
	RefreshTotal *prometheus.CounterVec

	// RefreshDuration measures how long a full fetch and normalize cycle takes.
	RefreshDuration prometheus.Histogram

	// LastSuccessTimestamp is the unix time of the last successful refresh.
	LastSuccessTimestamp prometheus.Gauge

	// Schemas is the number of definitions currently served.
	Schemas prometheus.Gauge

	// PathFetchFailures counts catalog paths skipped because they could not be fetched.
	PathFetchFailures prometheus.Counter

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPResponseSize     *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go runtime
// and process collectors.
func New() (*Metrics, error) {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of schema refresh cycles",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Duration of schema refresh cycles in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		LastSuccessTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "refresh_last_success_timestamp_seconds",
				Help:      "Unix time of the last successful schema refresh",
			},
		),
		Schemas: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "schemas",
				Help:      "Number of schema definitions currently served",
			},
		),
		PathFetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "path_fetch_failures_total",
				Help:      "Total number of catalog paths skipped because they could not be fetched",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				// The definitions document of a full cluster is several megabytes.
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 50000000},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
	}

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshTotal,
		m.RefreshDuration,
		m.LastSuccessTimestamp,
		m.Schemas,
		m.PathFetchFailures,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.HTTPRequestsInFlight,
	}
	for _, c := range toRegister {
		if err := m.Registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
