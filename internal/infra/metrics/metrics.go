// Package metrics provides Prometheus metrics for focusbot.
// Counters and histograms for classification, task transitions, delivery,
// digests and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Classification ─────────────────────────────────────────────────────────

// Classifications counts classified messages by intent type and source
// (pattern, model, fallback).
var Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "classifications_total",
	Help:      "Classified chat messages by intent type and source.",
}, []string{"type", "source"})

// ModelLatency tracks text-model request duration in seconds.
var ModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "focusbot",
	Name:      "model_latency_seconds",
	Help:      "Text model request duration in seconds.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
}, []string{"call"})

// ModelErrors counts failed text-model calls.
var ModelErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "model_errors_total",
	Help:      "Failed text model calls.",
}, []string{"call"})

// ─── Tasks ──────────────────────────────────────────────────────────────────

// Transitions counts lifecycle transitions by name.
var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "transitions_total",
	Help:      "Task lifecycle transitions.",
}, []string{"transition"})

// TasksCompleted counts closed tasks by category and how they were matched.
var TasksCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "tasks_completed_total",
	Help:      "Total completed tasks.",
}, []string{"category", "matched"})

// TaskAccuracy observes the accuracy score of each closed task.
var TaskAccuracy = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "focusbot",
	Name:      "task_accuracy_percent",
	Help:      "Accuracy percentage of completed tasks.",
	Buckets:   []float64{10, 25, 50, 60, 70, 80, 90, 95, 100},
})

// StoreErrors counts failed store operations.
var StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "store_errors_total",
	Help:      "Failed task store operations.",
}, []string{"op"})

// ─── Delivery ───────────────────────────────────────────────────────────────

// MessagesSent counts outbound chat messages by result (ok, error).
var MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "messages_sent_total",
	Help:      "Outbound chat messages by result.",
}, []string{"result"})

// DeliveryRetries counts outbox events (scheduled, delivered, exhausted, dropped).
var DeliveryRetries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "delivery_retries_total",
	Help:      "Outbox redelivery events by result.",
}, []string{"result"})

// OutboxPending is the number of replies waiting to be re-sent.
var OutboxPending = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "focusbot",
	Name:      "outbox_pending",
	Help:      "Replies waiting for redelivery.",
})

// ─── Digest ─────────────────────────────────────────────────────────────────

// DigestsPosted counts posted daily digests.
var DigestsPosted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "digests_posted_total",
	Help:      "Daily digests posted to chats.",
})

// DigestRunDuration tracks how long a digest run over all chats takes.
var DigestRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "focusbot",
	Name:      "digest_run_seconds",
	Help:      "Duration of a full digest run.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "focusbot",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "focusbot",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
