package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, payable_kind, payable_id, gateway, method, status, amount, currency, external_reference, order_reference, transaction_id, failure_reason, meta, paid_at, refunded_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var kind string
	if err := row.Scan(&p.ID, &kind, &p.Payable.ID, &p.Gateway, &p.Method, &p.Status, &p.Amount, &p.Currency, &p.ExternalReference, &p.OrderReference, &p.TransactionID, &p.FailureReason, &p.Meta, &p.PaidAt, &p.RefundedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.Payable.Kind = model.PayableKind(kind)
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, payable_kind, payable_id, gateway, method, status, amount, currency, external_reference, order_reference, transaction_id, failure_reason, meta, paid_at, refunded_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
) ON CONFLICT (id) DO UPDATE SET
  gateway=$4, method=$5, status=$6, amount=$7, currency=$8, external_reference=$9, order_reference=$10, transaction_id=$11, failure_reason=$12, meta=$13, paid_at=$14, refunded_at=$15, updated_at=$17;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, string(p.Payable.Kind), p.Payable.ID, p.Gateway, p.Method, p.Status, p.Amount, p.Currency, p.ExternalReference, p.OrderReference, p.TransactionID, p.FailureReason, p.Meta, p.PaidAt, p.RefundedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// FindByAnyReference matches the three identifiers a callback may carry.
// Inside a transaction the row is locked, so concurrent webhook deliveries
// serialize before the terminal-state check.
func (r *paymentRepo) FindByAnyReference(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1 OR order_reference=$1 OR external_reference=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", ref)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) SetExternalReference(ctx context.Context, tx repository.Tx, id, externalRef string) error {
	const q = `UPDATE payments SET external_reference=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, externalRef)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

// MarkPaid atomically transitions pending -> paid. The status guard in the
// WHERE clause makes duplicate deliveries a no-op.
func (r *paymentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id, transactionID string, paidAt time.Time) (bool, error) {
	const q = `
UPDATE payments
   SET status='paid',
       transaction_id=COALESCE(NULLIF($2,''), transaction_id),
       paid_at=$3,
       updated_at=NOW()
 WHERE id=$1
   AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, transactionID, paidAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	const q = `UPDATE payments SET status='failed', failure_reason=$2, updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, reason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkCancelled(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `UPDATE payments SET status='cancelled', updated_at=NOW() WHERE id=$1 AND status='pending';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string, refundedAt time.Time) (bool, error) {
	const q = `UPDATE payments SET status='refunded', refunded_at=$2, updated_at=NOW() WHERE id=$1 AND status='paid';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, refundedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) FindPaidByPayable(ctx context.Context, tx repository.Tx, payable model.Payable) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE payable_kind=$1 AND payable_id=$2 AND status='paid' LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, string(payable.Kind), payable.ID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE status='pending' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
