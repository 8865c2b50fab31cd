package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Cycle metrics
	CyclesTotal   prometheus.Counter
	CycleDuration prometheus.Histogram
	LastCycleTime prometheus.Gauge

	// Fetch metrics, labelled by source (nvd, advisory)
	FetchRequests *prometheus.CounterVec
	FetchErrors   *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Extraction metrics
	RecordsFetched   *prometheus.CounterVec
	MalformedRecords *prometheus.CounterVec

	// Findings
	NewFindings *prometheus.CounterVec

	// Notification metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	// State metrics
	StateSaves        *prometheus.CounterVec
	StateSaveFailures *prometheus.CounterVec
	SeenItems         *prometheus.GaugeVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton metrics instance
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "cvealert_cycles_total",
				Help: "Total number of polling cycles run",
			}),
			CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "cvealert_cycle_duration_seconds",
				Help:    "Duration of a full polling cycle in seconds",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
			}),
			LastCycleTime: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "cvealert_last_cycle_timestamp_seconds",
				Help: "Unix time at which the last polling cycle finished",
			}),

			FetchRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_fetch_requests_total",
					Help: "Total number of upstream fetches by source",
				},
				[]string{"source"},
			),
			FetchErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_fetch_errors_total",
					Help: "Total number of failed upstream fetches by source",
				},
				[]string{"source"},
			),
			FetchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "cvealert_fetch_duration_seconds",
					Help:    "Duration of upstream fetches in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"source"},
			),

			RecordsFetched: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_records_fetched_total",
					Help: "Total number of feed entries and advisory articles extracted",
				},
				[]string{"source", "key"},
			),
			MalformedRecords: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_malformed_records_total",
					Help: "Total number of records skipped because a required field was absent",
				},
				[]string{"source"},
			),

			NewFindings: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_new_findings_total",
					Help: "Total number of new notable items by source and key",
				},
				[]string{"source", "key"},
			),

			NotificationsSent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_notifications_sent_total",
					Help: "Total number of chat notifications delivered",
				},
				[]string{"channel"},
			),
			NotificationsFailed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_notifications_failed_total",
					Help: "Total number of chat notifications that failed",
				},
				[]string{"channel"},
			),

			StateSaves: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_state_saves_total",
					Help: "Total number of state file writes",
				},
				[]string{"file"},
			),
			StateSaveFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cvealert_state_save_failures_total",
					Help: "Total number of failed state file writes",
				},
				[]string{"file"},
			),
			SeenItems: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "cvealert_seen_items",
					Help: "Number of identifiers recorded as already notified",
				},
				[]string{"source"},
			),
		}
	})
	return metricsInstance
}
