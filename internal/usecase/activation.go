// File: internal/usecase/activation.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
)

// Activator turns a confirmed payment into the entitlement it paid for.
// Dispatch is a switch over the payable kind; every handler is idempotent and
// runs inside the caller's transaction so an error rolls back the payment
// status update along with any partial activation.
type Activator struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	events    repository.EventRepository
	donations repository.DonationRepository
	log       *zerolog.Logger
}

func NewActivator(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	events repository.EventRepository,
	donations repository.DonationRepository,
	logger *zerolog.Logger,
) *Activator {
	l := logger.With().Str("component", "Activator").Logger()
	return &Activator{subs: subs, users: users, events: events, donations: donations, log: &l}
}

func (a *Activator) Activate(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	var err error
	switch p.Payable.Kind {
	case model.PayableSubscription:
		err = a.activateSubscription(ctx, tx, p)
	case model.PayableEventOrder:
		err = a.activateEventOrder(ctx, tx, p)
	case model.PayableDonation:
		err = a.activateDonation(ctx, tx, p)
	default:
		err = domain.ErrInvalidArgument
	}
	if err != nil {
		a.log.Error().Err(err).
			Str("payment_id", p.ID).
			Str("payable_kind", string(p.Payable.Kind)).
			Str("payable_id", p.Payable.ID).
			Msg("activation failed; transaction will roll back")
		return domain.NewError(domain.KindActivation, "activate", "", err)
	}
	return nil
}

func (a *Activator) activateSubscription(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	sub, err := a.subs.FindByID(ctx, tx, p.Payable.ID)
	if err != nil {
		return err
	}
	now := time.Now()

	period := sub.BillingPeriod
	if v, ok := p.Meta["billing_period"].(string); ok {
		if parsed, perr := model.ParseBillingPeriod(v); perr == nil {
			period = parsed
		}
	}

	if sub.Status == model.SubscriptionStatusActive {
		// Renewal: extend from the current period end. The caller invokes
		// activation once per paid payment, so the extension applies once.
		sub.EndsAt = period.End(sub.EndsAt)
	} else {
		sub.Status = model.SubscriptionStatusActive
		if sub.StartsAt == nil {
			sub.StartsAt = &now
		}
	}
	sub.BillingPeriod = period
	sub.UpdatedAt = now
	if err := a.subs.Save(ctx, tx, sub); err != nil {
		return err
	}

	enh, err := a.subs.FindEnhancementBySubscription(ctx, tx, sub.ID)
	if err != nil {
		return err
	}
	if enh.Status != model.EnhancementStatusActive {
		enh.Status = model.EnhancementStatusActive
		enh.PaymentFailureState = nil
		enh.UpdatedAt = now
		if err := a.subs.SaveEnhancement(ctx, tx, enh); err != nil {
			return err
		}
	}

	// At-most-one-active: cancel every other active subscription of the user.
	siblings, err := a.subs.FindActiveByUser(ctx, tx, sub.UserID)
	if err != nil {
		return err
	}
	for _, s := range siblings {
		if s.ID == sub.ID {
			continue
		}
		s.Status = model.SubscriptionStatusCancelled
		s.CanceledAt = &now
		s.CancelReason = "superseded by new subscription"
		s.UpdatedAt = now
		if err := a.subs.Save(ctx, tx, s); err != nil {
			return err
		}
		sibEnh, err := a.subs.FindEnhancementBySubscription(ctx, tx, s.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return err
		}
		sibEnh.Status = model.EnhancementStatusCancelled
		sibEnh.UpdatedAt = now
		if err := a.subs.SaveEnhancement(ctx, tx, sibEnh); err != nil {
			return err
		}
	}

	planID := sub.PlanID
	return a.users.SetSubscriptionFields(ctx, tx, sub.UserID, string(model.SubscriptionStatusActive), &sub.ID, &planID)
}

func (a *Activator) activateEventOrder(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	order, err := a.events.FindOrderByID(ctx, tx, p.Payable.ID)
	if err != nil {
		return err
	}
	if order.Status == model.EventOrderStatusPaid {
		return nil // duplicate delivery; nothing left to do
	}
	now := time.Now()
	order.Status = model.EventOrderStatusPaid
	order.PurchasedAt = &now
	if order.ReceiptNumber == "" {
		order.ReceiptNumber = newReceiptNumber("RCP")
	}
	order.UpdatedAt = now
	if err := a.events.SaveOrder(ctx, tx, order); err != nil {
		return err
	}
	// Promo usage counts once per order; guarded by the prior-status check above.
	if order.PromoCodeID != nil {
		if err := a.events.IncrementPromoUses(ctx, tx, *order.PromoCodeID); err != nil {
			return err
		}
	}
	return nil
}

func (a *Activator) activateDonation(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	donation, err := a.donations.FindByID(ctx, tx, p.Payable.ID)
	if err != nil {
		return err
	}
	if donation.Status == model.DonationStatusPaid {
		return nil
	}
	now := time.Now()
	donation.Status = model.DonationStatusPaid
	donation.PaymentDate = &now
	donation.PaymentID = p.ID
	if donation.ReceiptNumber == "" {
		donation.ReceiptNumber = newReceiptNumber("DON")
	}
	donation.UpdatedAt = now
	return a.donations.Save(ctx, tx, donation)
}

// RecordFailure propagates a failed payment attempt to the payable's retry
// state. Only subscriptions track failures; one-shot payables simply keep
// their pending/failed payment row.
func (a *Activator) RecordFailure(ctx context.Context, tx repository.Tx, p *model.Payment, reason string) error {
	switch p.Payable.Kind {
	case model.PayableSubscription:
		enh, err := a.subs.FindEnhancementBySubscription(ctx, tx, p.Payable.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		enh.RecordFailure(reason, time.Now())
		return a.subs.SaveEnhancement(ctx, tx, enh)
	case model.PayableDonation:
		d, err := a.donations.FindByID(ctx, tx, p.Payable.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
		if d.Status == model.DonationStatusPending {
			d.Status = model.DonationStatusFailed
			d.UpdatedAt = time.Now()
			return a.donations.Save(ctx, tx, d)
		}
	}
	return nil
}
