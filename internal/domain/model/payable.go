package model

import "membership-payments/internal/domain"

// PayableKind enumerates the entity types a payment can pay for.
type PayableKind string

const (
	PayableSubscription PayableKind = "subscription"
	PayableEventOrder   PayableKind = "event_order"
	PayableDonation     PayableKind = "donation"
)

// Payable is a typed reference to the domain entity a payment settles.
// The kind is a closed enum rather than a free-form type string, so
// activation dispatch is a switch over known values.
type Payable struct {
	Kind PayableKind `json:"kind"`
	ID   string      `json:"id"`
}

// ParsePayableKind validates a stored or wire-level kind string.
func ParsePayableKind(s string) (PayableKind, error) {
	switch PayableKind(s) {
	case PayableSubscription, PayableEventOrder, PayableDonation:
		return PayableKind(s), nil
	}
	return "", domain.ErrInvalidArgument
}

func (p Payable) Valid() bool {
	if p.ID == "" {
		return false
	}
	_, err := ParsePayableKind(string(p.Kind))
	return err == nil
}
