package relay

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsOnce sync.Once

	eventsReceivedTotal *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	pipelineDuration    prometheus.Histogram
)

// InitMetrics registers the relay pipeline metrics. Call once at startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		eventsReceivedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_events_received_total",
				Help: "Total number of events received by ingestion source",
			},
			[]string{"source"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_notifications_total",
				Help: "Total number of notification attempts by channel and status",
			},
			[]string{"channel", "status"},
		)

		pipelineDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "s1relay_pipeline_duration_seconds",
				Help:    "Duration of the archive-sanitize-summarize-notify pipeline",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		)
	})
}

func recordEvent(source string) {
	if eventsReceivedTotal != nil {
		eventsReceivedTotal.WithLabelValues(source).Inc()
	}
}

func recordNotification(channel, status string) {
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, status).Inc()
	}
}

func observePipeline(start time.Time) {
	if pipelineDuration != nil {
		pipelineDuration.Observe(time.Since(start).Seconds())
	}
}
