package model

import "time"

// User is a platform member. The subscription fields are denormalized copies
// maintained by the activation and cancellation flows; the source of truth
// stays in plan_subscriptions.
type User struct {
	ID                   string // UUID
	Email                string
	Name                 string
	Phone                string
	SubscriptionStatus   string  // "", "payment_pending", "active", "cancelled"
	ActiveSubscriptionID *string // set while an active subscription exists
	PlanID               *string // profile plan reference
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
