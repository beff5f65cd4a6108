package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created at order time; awaiting gateway outcome
	PaymentStatusPaid      PaymentStatus = "paid"      // gateway confirmed funds
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
	PaymentStatusCancelled PaymentStatus = "cancelled" // user/gateway cancel before completion
	PaymentStatusRefunded  PaymentStatus = "refunded"  // administrative transition from paid
)

// Terminal reports whether no further automatic transition applies.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// Payment records one transaction attempt against an external gateway.
type Payment struct {
	ID                string  // UUID
	Payable           Payable // the entitlement this payment settles
	Gateway           string  // e.g. "pesapal", "mock"
	Method            string  // card, mobile_money, ...
	Status            PaymentStatus
	Amount            int64 // minor units, to avoid float errors
	Currency          string
	ExternalReference string // gateway tracking id, unique per attempt
	OrderReference    string // merchant-assigned, stable per order
	TransactionID     string // gateway confirmation code after completion
	FailureReason     string
	Meta              map[string]interface{} // serialized as JSONB
	PaidAt            *time.Time
	RefundedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MatchesReference reports whether ref identifies this payment by any of the
// three accepted identifiers. Callbacks may supply either one.
func (p *Payment) MatchesReference(ref string) bool {
	return ref != "" && (ref == p.ID || ref == p.OrderReference || ref == p.ExternalReference)
}
