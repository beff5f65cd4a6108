// File: internal/usecase/subscription_uc.go
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

// InitiateSubscriptionRequest starts (or retries) a paid subscription.
type InitiateSubscriptionRequest struct {
	UserID        string
	PlanID        string
	BillingPeriod model.BillingPeriod
	Gateway       string // empty means the configured default
	Contact       adapter.Contact
}

type SubscriptionUseCase interface {
	// Initiate finds-or-creates the (user, plan) subscription in
	// payment_pending, creates a pending payment for the plan price and opens
	// the gateway checkout. Activation happens on the confirmation callback,
	// never here.
	Initiate(ctx context.Context, req InitiateSubscriptionRequest) (*InitiationResult, error)
	// Cancel ends the user's active subscription immediately.
	Cancel(ctx context.Context, userID, reason string) (*model.PlanSubscription, error)
	// FinishExpired flips active subscriptions past their period end to
	// expired. Returns the number of subscriptions transitioned.
	FinishExpired(ctx context.Context) (int, error)
}

type subscriptionUC struct {
	tm       repository.TransactionManager
	subs     repository.SubscriptionRepository
	plans    repository.PlanRepository
	users    repository.UserRepository
	payments repository.PaymentRepository
	gateways GatewayResolver
	checkout *checkout
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(
	tm repository.TransactionManager,
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	users repository.UserRepository,
	payments repository.PaymentRepository,
	sessions repository.PendingPaymentStore,
	gateways GatewayResolver,
	sessionTTL time.Duration,
	callbackURL string,
	logger *zerolog.Logger,
) SubscriptionUseCase {
	l := logger.With().Str("component", "SubscriptionUseCase").Logger()
	return &subscriptionUC{
		tm:       tm,
		subs:     subs,
		plans:    plans,
		users:    users,
		payments: payments,
		gateways: gateways,
		checkout: &checkout{payments: payments, sessions: sessions, sessionTTL: sessionTTL, callbackURL: callbackURL, log: &l},
		log:      &l,
	}
}

func (u *subscriptionUC) Initiate(ctx context.Context, req InitiateSubscriptionRequest) (*InitiationResult, error) {
	const op = "subscription.Initiate"
	if req.UserID == "" || req.PlanID == "" {
		return nil, domain.NewError(domain.KindValidation, op, "user and plan are required", domain.ErrInvalidArgument)
	}

	plan, err := u.plans.FindByID(ctx, repository.NoTX, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.NewError(domain.KindValidation, op, "plan is not open for subscription", domain.ErrInvalidArgument)
	}
	if req.BillingPeriod != model.BillingMonthly && req.BillingPeriod != model.BillingYearly {
		return nil, domain.NewError(domain.KindValidation, op, "unknown billing period", domain.ErrInvalidArgument)
	}
	amount := plan.Price(req.BillingPeriod)
	if _, err := u.users.FindByID(ctx, repository.NoTX, req.UserID); err != nil {
		return nil, err
	}

	gw, err := u.gateways.Get(req.Gateway)
	if err != nil {
		return nil, domain.NewError(domain.KindGateway, op, "unknown gateway "+req.Gateway, err)
	}

	var payment *model.Payment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()

		// Repeat initiations reuse the (user, plan) row, so a retry after a
		// failed payment does not pile up payment_pending subscriptions.
		sub, err := u.subs.FindByUserAndPlan(ctx, tx, req.UserID, req.PlanID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			sub = &model.PlanSubscription{
				ID:            newUUID(),
				UserID:        req.UserID,
				PlanID:        req.PlanID,
				BillingPeriod: req.BillingPeriod,
				Status:        model.SubscriptionStatusPaymentPending,
				EndsAt:        req.BillingPeriod.End(now),
				CreatedAt:     now,
				UpdatedAt:     now,
			}
		case err != nil:
			return err
		default:
			// Renewal of an active subscription leaves the row untouched: the
			// period extension happens on activation, once the payment is paid.
			if sub.Status != model.SubscriptionStatusActive {
				sub.Status = model.SubscriptionStatusPaymentPending
				sub.BillingPeriod = req.BillingPeriod
				sub.EndsAt = req.BillingPeriod.End(now)
				sub.UpdatedAt = now
			}
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}

		enh, err := u.subs.FindEnhancementBySubscription(ctx, tx, sub.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			enh = &model.SubscriptionEnhancement{
				ID:                 newUUID(),
				SubscriptionID:     sub.ID,
				Status:             model.EnhancementStatusPaymentPending,
				MaxRenewalAttempts: 3,
				CreatedAt:          now,
				UpdatedAt:          now,
			}
		case err != nil:
			return err
		default:
			if !enh.CanRetry() && enh.Status != model.EnhancementStatusActive {
				return domain.NewError(domain.KindConflict, op,
					fmt.Sprintf("payment retry limit reached (%d attempts)", enh.RenewalAttempts), domain.ErrRateLimited)
			}
		}
		if err := u.subs.SaveEnhancement(ctx, tx, enh); err != nil {
			return err
		}

		payment = newPendingPayment(
			model.Payable{Kind: model.PayableSubscription, ID: sub.ID},
			gw.Name(), amount, plan.Currency, newOrderReference("SUB"),
		)
		// Activation reads the period off the payment, so a renewal extends by
		// what was actually paid for even if the cadence changed.
		payment.Meta = map[string]interface{}{"billing_period": string(req.BillingPeriod)}
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	desc := fmt.Sprintf("%s plan, %s billing", plan.Name, req.BillingPeriod)
	return u.checkout.initiate(ctx, gw, payment, req.Contact, desc)
}

func (u *subscriptionUC) Cancel(ctx context.Context, userID, reason string) (*model.PlanSubscription, error) {
	const op = "subscription.Cancel"
	var cancelled *model.PlanSubscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		active, err := u.subs.FindActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(active) == 0 {
			return domain.NewError(domain.KindNotFound, op, "no active subscription", domain.ErrNoActiveSubscription)
		}
		now := time.Now()
		for _, sub := range active {
			sub.Status = model.SubscriptionStatusCancelled
			sub.CanceledAt = &now
			sub.CancelReason = reason
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			enh, err := u.subs.FindEnhancementBySubscription(ctx, tx, sub.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return err
			}
			enh.Status = model.EnhancementStatusCancelled
			enh.UpdatedAt = now
			if err := u.subs.SaveEnhancement(ctx, tx, enh); err != nil {
				return err
			}
		}
		cancelled = active[0]
		return u.users.SetSubscriptionFields(ctx, tx, userID, string(model.SubscriptionStatusCancelled), nil, nil)
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("user_id", userID).Str("subscription_id", cancelled.ID).Msg("subscription cancelled")
	return cancelled, nil
}

func (u *subscriptionUC) FinishExpired(ctx context.Context) (int, error) {
	var n int
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		ended, err := u.subs.ListActiveEndedBefore(ctx, tx, now, 200)
		if err != nil {
			return err
		}
		for _, sub := range ended {
			sub.Status = model.SubscriptionStatusExpired
			sub.UpdatedAt = now
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			if err := u.users.SetSubscriptionFields(ctx, tx, sub.UserID, string(model.SubscriptionStatusExpired), nil, nil); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
