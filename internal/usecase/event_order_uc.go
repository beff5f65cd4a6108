// File: internal/usecase/event_order_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
)

// CreateOrderRequest purchases event tickets.
type CreateOrderRequest struct {
	EventID   string
	UserID    string
	Quantity  int
	PromoCode string // optional
	Gateway   string // empty means the configured default
	Contact   adapter.Contact
}

// subscriberDiscountPercent is the flat discount active subscribers get on
// ticket orders, applied after any promo discount.
const subscriberDiscountPercent = 10

type EventOrderUseCase interface {
	// CreateOrder validates capacity and promo eligibility, creates the order
	// and its pending payment, then opens the gateway checkout. Capacity is
	// checked under the event row lock so concurrent orders cannot oversell.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*InitiationResult, error)
	// CheckIn redeems a QR token exactly once.
	CheckIn(ctx context.Context, qrToken string) (*model.EventOrder, error)
}

type eventOrderUC struct {
	tm       repository.TransactionManager
	events   repository.EventRepository
	subs     repository.SubscriptionRepository
	payments repository.PaymentRepository
	gateways GatewayResolver
	checkout *checkout
	log      *zerolog.Logger
}

func NewEventOrderUseCase(
	tm repository.TransactionManager,
	events repository.EventRepository,
	subs repository.SubscriptionRepository,
	payments repository.PaymentRepository,
	sessions repository.PendingPaymentStore,
	gateways GatewayResolver,
	sessionTTL time.Duration,
	callbackURL string,
	logger *zerolog.Logger,
) EventOrderUseCase {
	l := logger.With().Str("component", "EventOrderUseCase").Logger()
	return &eventOrderUC{
		tm:       tm,
		events:   events,
		subs:     subs,
		payments: payments,
		gateways: gateways,
		checkout: &checkout{payments: payments, sessions: sessions, sessionTTL: sessionTTL, callbackURL: callbackURL, log: &l},
		log:      &l,
	}
}

func (u *eventOrderUC) CreateOrder(ctx context.Context, req CreateOrderRequest) (*InitiationResult, error) {
	const op = "eventorder.CreateOrder"
	if req.Quantity < 1 {
		return nil, domain.NewError(domain.KindValidation, op, "quantity must be at least 1", domain.ErrInvalidArgument)
	}
	gw, err := u.gateways.Get(req.Gateway)
	if err != nil {
		return nil, domain.NewError(domain.KindGateway, op, "unknown gateway "+req.Gateway, err)
	}

	var (
		payment *model.Payment
		event   *model.Event
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()

		// Locks the event row; capacity arithmetic below is serialized.
		event, err = u.events.FindEventByID(ctx, tx, req.EventID)
		if err != nil {
			return err
		}
		reserved, err := u.events.CountReservedSpots(ctx, tx, event.ID)
		if err != nil {
			return err
		}
		if reserved+req.Quantity > event.Capacity {
			return domain.NewError(domain.KindConflict, op,
				fmt.Sprintf("only %d spots left", event.Capacity-reserved), domain.ErrInsufficientSpots)
		}

		// All pricing decisions happen before any row is created.
		unit := event.TicketPrice
		original := unit * int64(req.Quantity)
		total := original

		var promoID *string
		var promoDiscount int64
		if req.PromoCode != "" {
			promo, err := u.events.FindPromoCode(ctx, tx, req.PromoCode)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.NewError(domain.KindValidation, op, "unknown promo code", err)
				}
				return err
			}
			if !promo.Usable(now) {
				return domain.NewError(domain.KindConflict, op, "promo code is exhausted or expired", domain.ErrPromoExhausted)
			}
			promoDiscount = total * int64(promo.PercentOff) / 100
			total -= promoDiscount
			promoID = &promo.ID
		}

		var subscriberDiscount int64
		active, err := u.subs.FindActiveByUser(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			subscriberDiscount = total * subscriberDiscountPercent / 100
			total -= subscriberDiscount
		}

		order := &model.EventOrder{
			ID:                       newUUID(),
			EventID:                  event.ID,
			UserID:                   req.UserID,
			Quantity:                 req.Quantity,
			UnitPrice:                unit,
			OriginalAmount:           original,
			PromoDiscountAmount:      promoDiscount,
			SubscriberDiscountAmount: subscriberDiscount,
			TotalAmount:              total,
			Currency:                 event.Currency,
			Status:                   model.EventOrderStatusPending,
			Reference:                newOrderReference("EVT"),
			QRCodeToken:              newUUID(),
			PromoCodeID:              promoID,
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		if err := u.events.SaveOrder(ctx, tx, order); err != nil {
			return err
		}

		payment = newPendingPayment(
			model.Payable{Kind: model.PayableEventOrder, ID: order.ID},
			gw.Name(), total, event.Currency, order.Reference,
		)
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("%d ticket(s) for %s", req.Quantity, event.Name)
	return u.checkout.initiate(ctx, gw, payment, req.Contact, desc)
}

func (u *eventOrderUC) CheckIn(ctx context.Context, qrToken string) (*model.EventOrder, error) {
	const op = "eventorder.CheckIn"
	var order *model.EventOrder
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		order, err = u.events.FindOrderByQRToken(ctx, tx, qrToken)
		if err != nil {
			return err
		}
		if order.Status != model.EventOrderStatusPaid {
			return domain.NewError(domain.KindConflict, op, "order is not paid", domain.ErrOperationFailed)
		}
		if order.CheckedInAt != nil {
			return domain.NewError(domain.KindConflict, op, "ticket already checked in", domain.ErrAlreadyCheckedIn)
		}
		now := time.Now()
		order.CheckedInAt = &now
		order.UpdatedAt = now
		return u.events.SaveOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("order_id", order.ID).Str("event_id", order.EventID).Msg("ticket checked in")
	return order, nil
}
