package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		webhookNotifications,
		webhookQueueDepth,
	)
}

var (
	webhookNotifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Processed gateway notifications by outcome (activated/no_op/not_found/expired/failed).",
		},
		[]string{"outcome"},
	)

	webhookQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "webhook_queue_depth",
			Help: "Notifications accepted but not yet processed.",
		},
	)
)

func IncWebhookOutcome(outcome string) {
	webhookNotifications.WithLabelValues(norm(outcome)).Inc()
}

func WebhookQueued()   { webhookQueueDepth.Inc() }
func WebhookDequeued() { webhookQueueDepth.Dec() }
