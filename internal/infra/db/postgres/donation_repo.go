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

var _ repository.DonationRepository = (*donationRepo)(nil)

type donationRepo struct{ pool *pgxpool.Pool }

func NewDonationRepo(pool *pgxpool.Pool) *donationRepo {
	return &donationRepo{pool: pool}
}

const donationColumns = `id, campaign_id, donor_name, donor_email, donor_phone, amount, currency, status, reference, receipt_number, payment_id, payment_date, created_at, updated_at`

func scanDonation(row pgx.Row) (*model.Donation, error) {
	d := &model.Donation{}
	if err := row.Scan(&d.ID, &d.CampaignID, &d.DonorName, &d.DonorEmail, &d.DonorPhone, &d.Amount, &d.Currency, &d.Status, &d.Reference, &d.ReceiptNumber, &d.PaymentID, &d.PaymentDate, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return d, nil
}

func (r *donationRepo) Save(ctx context.Context, tx repository.Tx, d *model.Donation) error {
	const q = `
INSERT INTO donations (
  id, campaign_id, donor_name, donor_email, donor_phone, amount, currency, status, reference, receipt_number, payment_id, payment_date, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  status=$8, receipt_number=$10, payment_id=$11, payment_date=$12, updated_at=$14;`

	_, err := execSQL(ctx, r.pool, tx, q, d.ID, d.CampaignID, d.DonorName, d.DonorEmail, d.DonorPhone, d.Amount, d.Currency, d.Status, d.Reference, d.ReceiptNumber, d.PaymentID, d.PaymentDate, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *donationRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanDonation(row)
}

func (r *donationRepo) FindByReference(ctx context.Context, tx repository.Tx, reference string) (*model.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations WHERE reference=$1 LIMIT 1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", reference)
	if err != nil {
		return nil, err
	}
	return scanDonation(row)
}
