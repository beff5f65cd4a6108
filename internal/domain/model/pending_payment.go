package model

import "time"

type PendingPaymentState string

const (
	PendingPaymentStatePending   PendingPaymentState = "pending"
	PendingPaymentStateCompleted PendingPaymentState = "completed"
	PendingPaymentStateExpired   PendingPaymentState = "expired"
)

// PendingPayment bridges the gap between "gateway redirect issued" and the
// durable Payment row. It is keyed by the gateway tracking id and carries an
// expiry that must be checked before any completion callback is trusted.
type PendingPayment struct {
	TrackingID string              `json:"tracking_id"`
	PaymentID  string              `json:"payment_id"`
	Payable    Payable             `json:"payable"`
	Amount     int64               `json:"amount"`
	Currency   string              `json:"currency"`
	Phone      string              `json:"phone"` // payer contact; drives mock outcomes
	State      PendingPaymentState `json:"state"`
	ExpiresAt  time.Time           `json:"expires_at"`
	CreatedAt  time.Time           `json:"created_at"`
}

// ExpiredAt reports whether the session must no longer be completed.
func (p *PendingPayment) ExpiredAt(now time.Time) bool {
	return p.State == PendingPaymentStateExpired || now.After(p.ExpiresAt)
}
