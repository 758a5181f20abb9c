package llm

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

var (
	metricsOnce sync.Once

	summarizeRequestsTotal *prometheus.CounterVec
	summarizeDuration      prometheus.Histogram
	guardrailsTotal        *prometheus.CounterVec
	apiErrorsTotal         *prometheus.CounterVec
	summaryConfidence      prometheus.Histogram
	summarySeverity        *prometheus.CounterVec
)

// InitMetrics registers the summarizer metrics. Call once at startup.
func InitMetrics() {
	metricsOnce.Do(func() {
		summarizeRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_summarize_requests_total",
				Help: "Total number of LLM summarize requests by status and reason",
			},
			[]string{"status", "reason"},
		)

		summarizeDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "s1relay_summarize_duration_seconds",
				Help:    "Duration of LLM summarize operations in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		)

		guardrailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_summarize_guardrails_total",
				Help: "Total number of guardrail activations by type and action",
			},
			[]string{"type", "action"},
		)

		apiErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_llm_api_errors_total",
				Help: "Total number of LLM API errors by error type",
			},
			[]string{"error_type"},
		)

		summaryConfidence = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "s1relay_summary_confidence",
				Help:    "Distribution of summary confidence scores (0-100)",
				Buckets: []float64{50, 60, 70, 75, 80, 85, 90, 95, 100},
			},
		)

		summarySeverity = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "s1relay_summary_severity",
				Help: "Distribution of summary severity levels",
			},
			[]string{"severity"},
		)
	})
}

// RecordSummarizeRequest records a summarize request.
// status: "success", "error", "skipped"
func RecordSummarizeRequest(status, reason string) {
	if summarizeRequestsTotal != nil {
		summarizeRequestsTotal.WithLabelValues(status, reason).Inc()
	}
}

// RecordGuardrail records a guardrail activation.
// guardType: "pre", "post"; action: "skip", "override"
func RecordGuardrail(guardType, action string) {
	if guardrailsTotal != nil {
		guardrailsTotal.WithLabelValues(guardType, action).Inc()
	}
}

// RecordError records an LLM API error by type.
// errorType: "timeout", "auth", "rate_limit", "server_error", "connection", "parse", "circuit_open"
func RecordError(errorType string) {
	if apiErrorsTotal != nil {
		apiErrorsTotal.WithLabelValues(errorType).Inc()
	}
}

// RecordResult records metrics from a completed summary.
func RecordResult(result *domain.Summary) {
	if result == nil {
		return
	}
	if summaryConfidence != nil {
		summaryConfidence.Observe(float64(result.Confidence))
	}
	if summarySeverity != nil {
		summarySeverity.WithLabelValues(result.Severity).Inc()
	}
}

// SummarizeTimer measures one summarize operation.
type SummarizeTimer struct {
	start time.Time
}

func StartTimer() *SummarizeTimer {
	return &SummarizeTimer{start: time.Now()}
}

func (t *SummarizeTimer) ObserveDuration() {
	if t != nil && summarizeDuration != nil {
		summarizeDuration.Observe(time.Since(t.start).Seconds())
	}
}
