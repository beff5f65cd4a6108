package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsExpired,
		sessionsSwept,
	)
}

var (
	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Active subscriptions flipped to expired by the sweep.",
		},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_sessions_swept_total",
			Help: "Stale pending payment sessions expired by the sweeper.",
		},
	)
)

func IncSubscriptionsExpired(n int) { subscriptionsExpired.Add(float64(n)) }
func IncSessionsSwept(n int)        { sessionsSwept.Add(float64(n)) }
