package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
)

var _ repository.EventRepository = (*eventRepo)(nil)

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

func (r *eventRepo) SaveEvent(ctx context.Context, tx repository.Tx, e *model.Event) error {
	const q = `
INSERT INTO events (id, name, capacity, ticket_price, currency, starts_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET name=$2, capacity=$3, ticket_price=$4, currency=$5, starts_at=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.Name, e.Capacity, e.TicketPrice, e.Currency, e.StartsAt, e.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *eventRepo) FindEventByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	q := `SELECT id, name, capacity, ticket_price, currency, starts_at, created_at FROM events WHERE id=$1`
	if inTx(tx) {
		// Ordering capacity checks behind the event row lock keeps two
		// concurrent orders from both passing the remaining-spots check.
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}

	e := &model.Event{}
	if err := row.Scan(&e.ID, &e.Name, &e.Capacity, &e.TicketPrice, &e.Currency, &e.StartsAt, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *eventRepo) CountReservedSpots(ctx context.Context, tx repository.Tx, eventID string) (int, error) {
	const q = `SELECT COALESCE(SUM(quantity),0) FROM event_orders WHERE event_id=$1 AND status IN ('pending','paid');`
	row, err := pickRow(ctx, r.pool, tx, q, eventID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

const orderColumns = `id, event_id, user_id, quantity, unit_price, original_amount, promo_discount_amount, subscriber_discount_amount, total_amount, currency, status, reference, receipt_number, qr_code_token, promo_code_id, purchased_at, checked_in_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.EventOrder, error) {
	o := &model.EventOrder{}
	if err := row.Scan(&o.ID, &o.EventID, &o.UserID, &o.Quantity, &o.UnitPrice, &o.OriginalAmount, &o.PromoDiscountAmount, &o.SubscriberDiscountAmount, &o.TotalAmount, &o.Currency, &o.Status, &o.Reference, &o.ReceiptNumber, &o.QRCodeToken, &o.PromoCodeID, &o.PurchasedAt, &o.CheckedInAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *eventRepo) SaveOrder(ctx context.Context, tx repository.Tx, o *model.EventOrder) error {
	const q = `
INSERT INTO event_orders (
  id, event_id, user_id, quantity, unit_price, original_amount, promo_discount_amount, subscriber_discount_amount, total_amount, currency, status, reference, receipt_number, qr_code_token, promo_code_id, purchased_at, checked_in_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (id) DO UPDATE SET
  status=$11, receipt_number=$13, purchased_at=$16, checked_in_at=$17, updated_at=$19;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.EventID, o.UserID, o.Quantity, o.UnitPrice, o.OriginalAmount, o.PromoDiscountAmount, o.SubscriberDiscountAmount, o.TotalAmount, o.Currency, o.Status, o.Reference, o.ReceiptNumber, o.QRCodeToken, o.PromoCodeID, o.PurchasedAt, o.CheckedInAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *eventRepo) FindOrderByID(ctx context.Context, tx repository.Tx, id string) (*model.EventOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM event_orders WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *eventRepo) FindOrderByQRToken(ctx context.Context, tx repository.Tx, token string) (*model.EventOrder, error) {
	q := `SELECT ` + orderColumns + ` FROM event_orders WHERE qr_code_token=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", token)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *eventRepo) SavePromoCode(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	const q = `
INSERT INTO promo_codes (id, code, percent_off, max_uses, uses, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET percent_off=$3, max_uses=$4, uses=$5, expires_at=$6;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.Code, p.PercentOff, p.MaxUses, p.Uses, p.ExpiresAt, p.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *eventRepo) FindPromoCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	const q = `SELECT id, code, percent_off, max_uses, uses, expires_at, created_at FROM promo_codes WHERE code=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	p := &model.PromoCode{}
	if err := row.Scan(&p.ID, &p.Code, &p.PercentOff, &p.MaxUses, &p.Uses, &p.ExpiresAt, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *eventRepo) IncrementPromoUses(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE promo_codes SET uses=uses+1 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}
