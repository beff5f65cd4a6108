package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPaymentPending SubscriptionStatus = "payment_pending"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
)

// PlanSubscription is a user's subscription to a plan for a billing period.
// Renewals reuse the same row, so a subscription can accumulate several
// payments over its lifetime.
type PlanSubscription struct {
	ID            string // UUID
	UserID        string
	PlanID        string
	BillingPeriod BillingPeriod
	Status        SubscriptionStatus
	StartsAt      *time.Time // nil until first activation
	EndsAt        time.Time
	CanceledAt    *time.Time
	CancelReason  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type EnhancementStatus string

const (
	EnhancementStatusPaymentPending EnhancementStatus = "payment_pending"
	EnhancementStatusActive         EnhancementStatus = "active"
	EnhancementStatusCancelled      EnhancementStatus = "cancelled"
)

// SubscriptionEnhancement is the 1:1 supplementary state machine attached to
// a PlanSubscription, tracking payment-retry state separately from the
// subscription's billing-period fields.
//
// Transitions: payment_pending -> active on payment success;
// payment_pending stays payment_pending with PaymentFailureState set on a
// retryable failure; active -> cancelled on explicit cancellation.
type SubscriptionEnhancement struct {
	ID                  string // UUID
	SubscriptionID      string // unique
	Status              EnhancementStatus
	PaymentFailureState *string // nil unless the last payment attempt failed
	RenewalAttempts     int
	MaxRenewalAttempts  int
	Metadata            map[string]interface{}
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RecordFailure marks a retryable payment failure. The enhancement stays in
// payment_pending so the user can retry up to MaxRenewalAttempts times.
func (e *SubscriptionEnhancement) RecordFailure(reason string, now time.Time) {
	e.PaymentFailureState = &reason
	e.RenewalAttempts++
	e.UpdatedAt = now
}

// CanRetry reports whether another payment attempt is allowed.
func (e *SubscriptionEnhancement) CanRetry() bool {
	return e.Status == EnhancementStatusPaymentPending && e.RenewalAttempts < e.MaxRenewalAttempts
}
