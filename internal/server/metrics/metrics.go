// Package metrics holds the Prometheus collectors for storage calls and the
// HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values for storage calls.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

type Metrics struct {
	StorageRequests *prometheus.CounterVec   // bucketvault_storage_requests_total{operation,status}
	StorageDuration *prometheus.HistogramVec // bucketvault_storage_request_duration_seconds{operation}

	BytesUploaded   prometheus.Counter // bucketvault_storage_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // bucketvault_storage_bytes_downloaded_total

	HTTPRequests *prometheus.CounterVec // bucketvault_http_requests_total{method,route,status}
}

// New registers all collectors on registry. A nil registry falls back to
// prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		StorageRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketvault_storage_requests_total",
			Help: "Storage backend calls by operation and status",
		}, []string{"operation", "status"}),

		StorageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bucketvault_storage_request_duration_seconds",
			Help:    "Storage backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: f.NewCounter(prometheus.CounterOpts{
			Name: "bucketvault_storage_bytes_uploaded_total",
			Help: "Total bytes written to user buckets",
		}),

		BytesDownloaded: f.NewCounter(prometheus.CounterOpts{
			Name: "bucketvault_storage_bytes_downloaded_total",
			Help: "Total bytes read from user buckets",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bucketvault_http_requests_total",
			Help: "HTTP API requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
	}
}

// RecordStorage records one storage call. A nil receiver is a no-op so
// components can run without metrics in tests.
func (m *Metrics) RecordStorage(operation, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StorageRequests.WithLabelValues(operation, status).Inc()
	m.StorageDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) RecordUpload(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

func (m *Metrics) RecordDownload(bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.BytesDownloaded.Add(float64(bytes))
}

func (m *Metrics) RecordHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
