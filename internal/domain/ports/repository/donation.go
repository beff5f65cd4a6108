package repository

import (
	"context"

	"membership-payments/internal/domain/model"
)

type DonationRepository interface {
	Save(ctx context.Context, tx Tx, d *model.Donation) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Donation, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Donation, error)
}
