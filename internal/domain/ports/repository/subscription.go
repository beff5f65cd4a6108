package repository

import (
	"context"
	"time"

	"membership-payments/internal/domain/model"
)

// SubscriptionRepository persists plan subscriptions and their 1:1
// enhancement rows.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.PlanSubscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PlanSubscription, error)
	// FindByUserAndPlan returns the existing row for (user, plan) regardless
	// of status, so repeated initiation attempts reuse it.
	FindByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.PlanSubscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) ([]*model.PlanSubscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.PlanSubscription, error)
	// ListActiveEndedBefore returns active subscriptions whose period ended
	// before cutoff, for the expiry sweep.
	ListActiveEndedBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.PlanSubscription, error)

	SaveEnhancement(ctx context.Context, tx Tx, e *model.SubscriptionEnhancement) error
	FindEnhancementBySubscription(ctx context.Context, tx Tx, subscriptionID string) (*model.SubscriptionEnhancement, error)
}
