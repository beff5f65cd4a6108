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

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_id, billing_period, status, starts_at, ends_at, canceled_at, cancel_reason, created_at, updated_at`

func scanSubscription(row pgx.Row) (*model.PlanSubscription, error) {
	s := &model.PlanSubscription{}
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.BillingPeriod, &s.Status, &s.StartsAt, &s.EndsAt, &s.CanceledAt, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PlanSubscription) error {
	const q = `
INSERT INTO plan_subscriptions (
  id, user_id, plan_id, billing_period, status, starts_at, ends_at, canceled_at, cancel_reason, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  billing_period=$4, status=$5, starts_at=$6, ends_at=$7, canceled_at=$8, cancel_reason=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.PlanID, s.BillingPeriod, s.Status, s.StartsAt, s.EndsAt, s.CanceledAt, s.CancelReason, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM plan_subscriptions WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.PlanSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM plan_subscriptions WHERE user_id=$1 AND plan_id=$2 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", userID, planID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PlanSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM plan_subscriptions WHERE user_id=$1 AND status='active' ORDER BY created_at ASC`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PlanSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PlanSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM plan_subscriptions WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PlanSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) ListActiveEndedBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PlanSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM plan_subscriptions WHERE status='active' AND ends_at < $1 ORDER BY ends_at ASC LIMIT $2`
	if inTx(tx) {
		q += " FOR UPDATE SKIP LOCKED"
	}
	rows, err := queryRows(ctx, r.pool, tx, q+";", cutoff, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PlanSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) SaveEnhancement(ctx context.Context, tx repository.Tx, e *model.SubscriptionEnhancement) error {
	const q = `
INSERT INTO subscription_enhancements (
  id, subscription_id, status, payment_failure_state, renewal_attempts, max_renewal_attempts, metadata, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (subscription_id) DO UPDATE SET
  status=$3, payment_failure_state=$4, renewal_attempts=$5, max_renewal_attempts=$6, metadata=$7, updated_at=$9;`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.SubscriptionID, e.Status, e.PaymentFailureState, e.RenewalAttempts, e.MaxRenewalAttempts, e.Metadata, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindEnhancementBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.SubscriptionEnhancement, error) {
	q := `SELECT id, subscription_id, status, payment_failure_state, renewal_attempts, max_renewal_attempts, metadata, created_at, updated_at FROM subscription_enhancements WHERE subscription_id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", subscriptionID)
	if err != nil {
		return nil, err
	}

	e := &model.SubscriptionEnhancement{}
	if err := row.Scan(&e.ID, &e.SubscriptionID, &e.Status, &e.PaymentFailureState, &e.RenewalAttempts, &e.MaxRenewalAttempts, &e.Metadata, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}
