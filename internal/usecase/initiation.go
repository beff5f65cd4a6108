// File: internal/usecase/initiation.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
	"membership-payments/internal/infra/metrics"
)

// InitiationResult is what a checkout flow hands back to the transport layer:
// the pending payment row plus where to send the payer next.
type InitiationResult struct {
	Payment     *model.Payment
	TrackingID  string
	RedirectURL string
}

// checkout is the gateway-facing half of every purchase flow. It runs after
// the database transaction that created the payable and payment rows: a
// gateway call must never hold row locks.
type checkout struct {
	payments    repository.PaymentRepository
	sessions    repository.PendingPaymentStore
	sessionTTL  time.Duration
	callbackURL string
	log         *zerolog.Logger
}

// initiate opens the gateway transaction for a freshly persisted pending
// payment, records the returned tracking id and registers the expiry session.
//
// A transport error or an expected decline marks the payment failed so the
// row does not linger as a stuck pending.
func (c *checkout) initiate(ctx context.Context, gw adapter.PaymentGateway, p *model.Payment, contact adapter.Contact, description string) (*InitiationResult, error) {
	const op = "payment.initiate"

	res, err := gw.Initiate(ctx, adapter.InitiateRequest{
		PaymentID:   p.ID,
		Payable:     p.Payable,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Description: description,
		Reference:   p.OrderReference,
		Contact:     contact,
		CallbackURL: c.callbackURL,
	})
	if err != nil {
		c.markFailed(ctx, p, "gateway unreachable")
		return nil, domain.NewError(domain.KindGateway, op, "gateway initiation failed", err)
	}
	if !res.Success {
		c.markFailed(ctx, p, res.Message)
		return nil, domain.NewError(domain.KindGateway, op, res.Message, domain.ErrOperationFailed)
	}

	if err := c.payments.SetExternalReference(ctx, repository.NoTX, p.ID, res.TrackingID); err != nil {
		return nil, err
	}
	p.ExternalReference = res.TrackingID

	// The session drives the expiry guard on the confirmation path. The mock
	// gateway writes an identical entry itself; overwriting it is harmless.
	now := time.Now()
	session := &model.PendingPayment{
		TrackingID: res.TrackingID,
		PaymentID:  p.ID,
		Payable:    p.Payable,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Phone:      contact.Phone,
		State:      model.PendingPaymentStatePending,
		ExpiresAt:  now.Add(c.sessionTTL),
		CreatedAt:  now,
	}
	if err := c.sessions.Put(ctx, session); err != nil {
		c.log.Warn().Err(err).Str("payment_id", p.ID).Msg("could not store pending session")
	}

	c.log.Info().
		Str("payment_id", p.ID).
		Str("gateway", p.Gateway).
		Str("tracking_id", res.TrackingID).
		Msg("payment initiated")
	return &InitiationResult{Payment: p, TrackingID: res.TrackingID, RedirectURL: res.RedirectURL}, nil
}

func (c *checkout) markFailed(ctx context.Context, p *model.Payment, reason string) {
	if _, err := c.payments.MarkFailed(ctx, repository.NoTX, p.ID, reason); err != nil {
		c.log.Error().Err(err).Str("payment_id", p.ID).Msg("could not mark payment failed after initiation error")
	}
	metrics.IncPayment(p.Gateway, string(model.PaymentStatusFailed))
}

// newPendingPayment builds the durable payment row for a payable at order time.
func newPendingPayment(payable model.Payable, gateway string, amount int64, currency, orderRef string) *model.Payment {
	now := time.Now()
	return &model.Payment{
		ID:             newUUID(),
		Payable:        payable,
		Gateway:        gateway,
		Status:         model.PaymentStatusPending,
		Amount:         amount,
		Currency:       currency,
		OrderReference: orderRef,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
