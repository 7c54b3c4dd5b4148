// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AdmissionsTotal tracks webhook admission outcomes.
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_admissions_total",
			Help: "Webhook admission attempts by outcome",
		},
		[]string{"namespace", "outcome"},
	)

	// LockContentionTotal tracks admissions rejected because the session
	// lock was held.
	LockContentionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_lock_contention_total",
			Help: "Admissions rejected while a session lock was held",
		},
		[]string{"namespace"},
	)

	// QueuePublishesTotal tracks envelopes placed on the queue.
	QueuePublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_queue_publishes_total",
			Help: "Envelopes published to the work queue",
		},
		[]string{"namespace"},
	)

	// WorkerProcessedTotal tracks worker handling outcomes.
	WorkerProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_worker_processed_total",
			Help: "Envelopes processed by session workers, by outcome",
		},
		[]string{"namespace", "outcome"},
	)

	// LLMRequestDuration tracks completion call duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_llm_request_duration_seconds",
			Help:    "Completion request duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks tokens processed per provider.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// DeliveryChunksTotal tracks outbound message chunks sent.
	DeliveryChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_chunks_total",
			Help: "Outbound message chunks delivered",
		},
		[]string{"namespace"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for one completion call.
func RecordLLMRequest(provider, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}
