package repository

import (
	"context"
	"time"

	"membership-payments/internal/domain/model"
)

// PaymentRepository persists transaction attempts.
//
// The Mark* methods are status-guarded UPDATEs: they only transition a row
// still in the expected prior state and report whether a row changed. That
// rows-affected signal is the primary idempotency defense against duplicate
// webhook delivery.
type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	// FindByAnyReference matches id OR order_reference OR external_reference.
	// When tx is a live transaction handle the row is locked FOR UPDATE.
	FindByAnyReference(ctx context.Context, tx Tx, ref string) (*model.Payment, error)
	// SetExternalReference records the gateway tracking id after initiation.
	SetExternalReference(ctx context.Context, tx Tx, id, externalRef string) error

	// MarkPaid transitions pending -> paid. Returns false (no error) when the
	// row was not pending anymore.
	MarkPaid(ctx context.Context, tx Tx, id, transactionID string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, id, reason string) (bool, error)
	MarkCancelled(ctx context.Context, tx Tx, id string) (bool, error)
	// MarkRefunded transitions paid -> refunded (administrative action).
	MarkRefunded(ctx context.Context, tx Tx, id string, refundedAt time.Time) (bool, error)

	// FindPaidByPayable returns the paid payment for a one-shot payable, if any.
	FindPaidByPayable(ctx context.Context, tx Tx, payable model.Payable) (*model.Payment, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
