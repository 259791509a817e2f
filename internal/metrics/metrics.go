// Package metrics exposes Prometheus collectors for the webhook pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
	"github.com/UDDITwork/shipsarthi-sub005/internal/queue"
)

const namespace = "courier_webhooks"

// Webhook outcomes recorded by WebhookReceived.
const (
	OutcomeQueued       = "queued"
	OutcomeDuplicate    = "duplicate"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized"
	OutcomeQueueFull    = "queue_full"
)

// Metrics owns a registry and every collector registered on it.
type Metrics struct {
	registry *prometheus.Registry

	webhooksTotal        *prometheus.CounterVec
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	retriesTotal         *prometheus.CounterVec
	notificationsDropped *prometheus.CounterVec
	notificationsFailed  *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "received_total",
				Help:      "Webhooks received, by endpoint and admission outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		jobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_attempts_total",
				Help:      "Job attempts, by kind and resulting state",
			},
			[]string{"kind", "state"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of one job attempt",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_retries_total",
				Help:      "Retries scheduled, by kind",
			},
			[]string{"kind"},
		),
		notificationsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_dropped_total",
				Help:      "Notifications dropped because the dispatcher buffer was full or closed",
			},
			[]string{"sink"},
		),
		notificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Notifications the sink failed to emit",
			},
			[]string{"sink"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhooksTotal,
		m.jobsTotal,
		m.jobDuration,
		m.retriesTotal,
		m.notificationsDropped,
		m.notificationsFailed,
	)
	return m
}

// RegisterQueue exposes queue depth and state as gauges read at scrape time.
func (m *Metrics) RegisterQueue(stats func() queue.Stats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the queue",
		}, func() float64 { return float64(stats().Depth) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_scheduled_retries",
			Help:      "Jobs waiting for a retry timer",
		}, func() float64 { return float64(stats().Scheduled) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_processing",
			Help:      "1 while the worker is running a job",
		}, func() float64 {
			if stats().Processing {
				return 1
			}
			return 0
		}),
	)
}

// WebhookReceived counts one inbound webhook.
func (m *Metrics) WebhookReceived(endpoint, outcome string) {
	m.webhooksTotal.WithLabelValues(endpoint, outcome).Inc()
}

// JobFinished implements queue.Observer.
func (m *Metrics) JobFinished(kind payload.Kind, state queue.State, elapsed time.Duration) {
	m.jobsTotal.WithLabelValues(string(kind), string(state)).Inc()
	m.jobDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// RetryScheduled implements queue.Observer.
func (m *Metrics) RetryScheduled(kind payload.Kind, _ int, _ time.Duration) {
	m.retriesTotal.WithLabelValues(string(kind)).Inc()
}

// NotificationDropped implements notify.Observer.
func (m *Metrics) NotificationDropped(sink string) {
	m.notificationsDropped.WithLabelValues(sink).Inc()
}

// NotificationFailed implements notify.Observer.
func (m *Metrics) NotificationFailed(sink string) {
	m.notificationsFailed.WithLabelValues(sink).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
