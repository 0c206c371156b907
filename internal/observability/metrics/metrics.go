// Package metrics exposes prometheus instruments for the message pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the application-level instruments.
type Metrics struct {
	WebhookEvents    *prometheus.CounterVec
	MessagesStored   *prometheus.CounterVec
	RepliesGenerated *prometheus.CounterVec
	RepliesGated     *prometheus.CounterVec
	ReplyLatency     *prometheus.HistogramVec
	JobRuns          *prometheus.CounterVec
	JobErrors        *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New registers the instruments on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_webhook_events_total",
			Help: "Inbound webhook events received, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		MessagesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_messages_stored_total",
			Help: "Chat messages persisted, by direction.",
		}, []string{"direction"}),
		RepliesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_replies_generated_total",
			Help: "Assistant replies generated, by channel.",
		}, []string{"channel"}),
		RepliesGated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_replies_gated_total",
			Help: "Replies suppressed by the eligibility gate, by reason.",
		}, []string{"reason"}),
		ReplyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatly_reply_latency_seconds",
			Help:    "End-to-end reply latency including the model round trip.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"channel"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_job_runs_total",
			Help: "Scheduler job executions.",
		}, []string{"job"}),
		JobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_job_errors_total",
			Help: "Scheduler job failures.",
		}, []string{"job"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatly_http_requests_total",
			Help: "HTTP requests, by route and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatly_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.MessagesStored,
		m.RepliesGenerated,
		m.RepliesGated,
		m.ReplyLatency,
		m.JobRuns,
		m.JobErrors,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}
