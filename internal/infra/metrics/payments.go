package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		activationFailures,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by gateway and terminal status (paid/failed/cancelled/refunded).",
		},
		[]string{"gateway", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of paid payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	activationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_activation_failures_total",
			Help: "Activation handler errors that rolled back a confirmation, by payable kind.",
		},
		[]string{"payable_kind"},
	)
)

func IncPayment(gateway, status string) {
	paymentsTotal.WithLabelValues(norm(gateway), norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncActivationFailure(payableKind string) {
	activationFailures.WithLabelValues(norm(payableKind)).Inc()
}
