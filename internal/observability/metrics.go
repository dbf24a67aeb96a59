package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	pagesProcessedTotal   *prometheus.CounterVec
	responsesSubmitted    *prometheus.CounterVec
	analysisCacheRequests *prometheus.CounterVec
	jobsProcessedTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedback_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		pagesProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_pages_processed_total",
			Help: "Completion pages processed, by navigation direction and outcome.",
		}, []string{"direction", "outcome"})

		responsesSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_responses_submitted_total",
			Help: "Responses promoted from staging to permanent storage.",
		}, []string{"anonymous"})

		analysisCacheRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_analysis_cache_requests_total",
			Help: "Analysis cache lookups by result.",
		}, []string{"result"})

		jobsProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedback_jobs_processed_total",
			Help: "Background jobs handled by the worker.",
		}, []string{"type", "status"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			pagesProcessedTotal,
			responsesSubmitted,
			analysisCacheRequests,
			jobsProcessedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PagesProcessed counts completion page submissions.
func PagesProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return pagesProcessedTotal
}

// ResponsesSubmitted counts finished responses.
func ResponsesSubmitted() *prometheus.CounterVec {
	RegisterMetrics()
	return responsesSubmitted
}

// AnalysisCacheRequests counts analysis cache hits and misses.
func AnalysisCacheRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return analysisCacheRequests
}

// JobsProcessed counts worker task outcomes.
func JobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return jobsProcessedTotal
}

// MetricsHandler serves the scrape endpoint in the OpenMetrics format when the
// scraper asks for it.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}
