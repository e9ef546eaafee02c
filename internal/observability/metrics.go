package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "icewatch"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	// Submission workflow.
	Submissions        *prometheus.CounterVec // labels: outcome
	SubmissionDistance prometheus.Histogram
	WaterChecks        *prometheus.CounterVec // labels: result={water,land,error}

	// Geocoding.
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram

	// Photos.
	PhotoUploadBytes    prometheus.Histogram
	PhotoDeleteFailures prometheus.Counter

	MeasurementsLoaded prometheus.Gauge

	HTTPRequestDuration *prometheus.HistogramVec // labels: method, status
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Submissions,
		m.SubmissionDistance,
		m.WaterChecks,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.PhotoUploadBytes,
		m.PhotoDeleteFailures,
		m.MeasurementsLoaded,
		m.HTTPRequestDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many
// as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome.",
		}, []string{"outcome"}),
		SubmissionDistance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_distance_meters",
			Help:      "Distance between the device and the submitted point.",
			Buckets:   []float64{5, 10, 25, 50, 100, 200, 500, 1000, 5000},
		}),
		WaterChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "water_checks_total",
			Help:      "Water verification lookups by result.",
		}, []string{"result"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Reverse geocoding API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		PhotoUploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "photo_upload_bytes",
			Help:      "Size of uploaded photos after normalization.",
			Buckets:   prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),
		PhotoDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photo_delete_failures_total",
			Help:      "Photo removals that failed and were skipped.",
		}),
		MeasurementsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measurements_loaded",
			Help:      "Measurements currently held in memory.",
		}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
}
