package repository

import (
	"context"
	"time"

	"membership-payments/internal/domain/model"
)

// PendingPaymentStore tracks in-flight gateway sessions keyed by tracking id.
// Implementations are expected to be cache-backed with a TTL matching the
// session expiry; expiry must still be checked explicitly before completion
// because a surviving entry may be past its ExpiresAt.
type PendingPaymentStore interface {
	Put(ctx context.Context, pp *model.PendingPayment) error
	Get(ctx context.Context, trackingID string) (*model.PendingPayment, error)
	// SetState transitions the session to completed or expired.
	SetState(ctx context.Context, trackingID string, state model.PendingPaymentState) error
	// ListStale returns sessions past their expiry but not yet marked expired.
	ListStale(ctx context.Context, now time.Time, limit int) ([]*model.PendingPayment, error)
}
