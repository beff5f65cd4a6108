package repository

import (
	"context"

	"membership-payments/internal/domain/model"
)

// EventRepository persists events, ticket orders and promo codes.
type EventRepository interface {
	SaveEvent(ctx context.Context, tx Tx, e *model.Event) error
	FindEventByID(ctx context.Context, tx Tx, id string) (*model.Event, error)
	// CountReservedSpots sums the quantity of pending and paid orders for an
	// event. Used for the capacity check before an order row is created.
	CountReservedSpots(ctx context.Context, tx Tx, eventID string) (int, error)

	SaveOrder(ctx context.Context, tx Tx, o *model.EventOrder) error
	FindOrderByID(ctx context.Context, tx Tx, id string) (*model.EventOrder, error)
	FindOrderByQRToken(ctx context.Context, tx Tx, token string) (*model.EventOrder, error)

	SavePromoCode(ctx context.Context, tx Tx, p *model.PromoCode) error
	FindPromoCode(ctx context.Context, tx Tx, code string) (*model.PromoCode, error)
	// IncrementPromoUses bumps the usage counter by one.
	IncrementPromoUses(ctx context.Context, tx Tx, id string) error
}
