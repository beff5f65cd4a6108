package repository

import (
	"context"

	"membership-payments/internal/domain/model"
)

type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// SetSubscriptionFields stamps the denormalized subscription columns.
	// activeSubscriptionID and planID may be nil to clear them.
	SetSubscriptionFields(ctx context.Context, tx Tx, userID, status string, activeSubscriptionID, planID *string) error
}
