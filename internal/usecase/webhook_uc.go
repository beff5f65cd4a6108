// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
	"membership-payments/internal/infra/metrics"
)

// Notification is a normalized gateway callback. Status may be empty when the
// provider only pings (Pesapal IPN); the gateway is then queried for the
// authoritative state.
type Notification struct {
	TrackingID     string // gateway-assigned external reference
	OrderReference string // merchant reference echoed by the provider, if any
	Status         adapter.GatewayStatus
	TransactionID  string
	Method         string
}

func (n Notification) reference() string {
	if n.TrackingID != "" {
		return n.TrackingID
	}
	return n.OrderReference
}

// Outcome is what processing a notification did, for logging and metrics.
type Outcome string

const (
	OutcomeActivated Outcome = "activated"
	OutcomeNoOp      Outcome = "no_op"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomePending   Outcome = "pending"
	OutcomeExpired   Outcome = "expired"
)

// GatewayResolver is the slice of the gateway registry the webhook path needs.
type GatewayResolver interface {
	Get(name string) (adapter.PaymentGateway, error)
	Default() adapter.PaymentGateway
}

type WebhookUseCase interface {
	// ProcessNotification drives the payment state machine for one callback.
	// Safe to call any number of times for the same transaction.
	ProcessNotification(ctx context.Context, n Notification) (Outcome, error)
	// RedirectOutcome resolves the current payment status for the browser
	// return leg. Read-only: the redirect never mutates state, confirmation
	// belongs to the server-to-server notification.
	RedirectOutcome(ctx context.Context, ref string) (model.PaymentStatus, error)
}

type webhookUC struct {
	tm        repository.TransactionManager
	payments  repository.PaymentRepository
	sessions  repository.PendingPaymentStore
	gateways  GatewayResolver
	activator *Activator
	log       *zerolog.Logger
}

func NewWebhookUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	sessions repository.PendingPaymentStore,
	gateways GatewayResolver,
	activator *Activator,
	logger *zerolog.Logger,
) WebhookUseCase {
	l := logger.With().Str("component", "WebhookUseCase").Logger()
	return &webhookUC{tm: tm, payments: payments, sessions: sessions, gateways: gateways, activator: activator, log: &l}
}

func (u *webhookUC) ProcessNotification(ctx context.Context, n Notification) (Outcome, error) {
	const op = "webhook.ProcessNotification"
	ref := n.reference()
	if ref == "" {
		return "", domain.NewError(domain.KindValidation, op, "notification carries no reference", domain.ErrInvalidArgument)
	}

	// Unlocked pre-read: resolve the payment and short-circuit duplicates
	// before touching the gateway or opening a transaction.
	p, err := u.payments.FindByAnyReference(ctx, repository.NoTX, ref)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncWebhookOutcome("not_found")
			u.log.Warn().Str("reference", ref).Msg("notification for unknown payment")
			return "", domain.NewError(domain.KindNotFound, op, "no payment matches reference", err)
		}
		return "", err
	}
	if p.Status.Terminal() {
		metrics.IncWebhookOutcome(string(OutcomeNoOp))
		return OutcomeNoOp, nil
	}

	trackingID := n.TrackingID
	if trackingID == "" {
		trackingID = p.ExternalReference
	}

	// Expiry takes precedence over whatever the gateway reports: a session
	// past its deadline must not activate even on a "completed" callback.
	if expired := u.sessionExpired(ctx, trackingID); expired {
		outcome, err := u.cancelExpired(ctx, p, trackingID)
		if err != nil {
			return "", err
		}
		metrics.IncWebhookOutcome(string(outcome))
		return outcome, nil
	}

	status, txID, method := n.Status, n.TransactionID, n.Method
	if status == "" {
		gw, err := u.gateways.Get(p.Gateway)
		if err != nil {
			return "", domain.NewError(domain.KindGateway, op, "unknown gateway "+p.Gateway, err)
		}
		st, err := gw.CheckStatus(ctx, trackingID)
		if err != nil {
			return "", domain.NewError(domain.KindGateway, op, "status query failed", err)
		}
		status, txID, method = st.Status, st.TransactionID, st.Method
	}

	outcome := OutcomePending
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.payments.FindByAnyReference(ctx, tx, ref)
		if err != nil {
			return err
		}
		if locked.Status.Terminal() {
			outcome = OutcomeNoOp
			return nil
		}
		now := time.Now()
		switch status {
		case adapter.GatewayStatusCompleted:
			ok, err := u.payments.MarkPaid(ctx, tx, locked.ID, txID, now)
			if err != nil {
				return err
			}
			if !ok {
				outcome = OutcomeNoOp
				return nil
			}
			locked.Status = model.PaymentStatusPaid
			locked.TransactionID = txID
			if method != "" {
				locked.Method = method
			}
			if err := u.activator.Activate(ctx, tx, locked); err != nil {
				metrics.IncActivationFailure(string(locked.Payable.Kind))
				return err
			}
			outcome = OutcomeActivated
		case adapter.GatewayStatusFailed:
			ok, err := u.payments.MarkFailed(ctx, tx, locked.ID, "gateway reported failure")
			if err != nil {
				return err
			}
			if !ok {
				outcome = OutcomeNoOp
				return nil
			}
			if err := u.activator.RecordFailure(ctx, tx, locked, "gateway reported failure"); err != nil {
				return err
			}
			outcome = OutcomeFailed
		case adapter.GatewayStatusCancelled:
			ok, err := u.payments.MarkCancelled(ctx, tx, locked.ID)
			if err != nil {
				return err
			}
			if !ok {
				outcome = OutcomeNoOp
				return nil
			}
			outcome = OutcomeCancelled
		default:
			outcome = OutcomePending
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	u.finish(ctx, p, trackingID, outcome)
	return outcome, nil
}

// finish emits metrics and settles the session entry after the transaction
// committed. Session bookkeeping is best effort: the database row is the
// source of truth and the cache entry expires on its own.
func (u *webhookUC) finish(ctx context.Context, p *model.Payment, trackingID string, outcome Outcome) {
	metrics.IncWebhookOutcome(string(outcome))
	switch outcome {
	case OutcomeActivated:
		metrics.IncPayment(p.Gateway, string(model.PaymentStatusPaid))
		metrics.AddPaymentRevenue(p.Currency, p.Amount)
		if trackingID != "" {
			if err := u.sessions.SetState(ctx, trackingID, model.PendingPaymentStateCompleted); err != nil && !errors.Is(err, domain.ErrNotFound) {
				u.log.Warn().Err(err).Str("tracking_id", trackingID).Msg("could not settle pending session")
			}
		}
		u.log.Info().Str("payment_id", p.ID).Str("payable_kind", string(p.Payable.Kind)).Msg("payment confirmed and activated")
	case OutcomeFailed:
		metrics.IncPayment(p.Gateway, string(model.PaymentStatusFailed))
	case OutcomeCancelled:
		metrics.IncPayment(p.Gateway, string(model.PaymentStatusCancelled))
	}
}

func (u *webhookUC) sessionExpired(ctx context.Context, trackingID string) bool {
	if trackingID == "" {
		return false
	}
	pp, err := u.sessions.Get(ctx, trackingID)
	if err != nil {
		return false
	}
	// The sweeper may flip the session to expired before it reaches the
	// payment row, so the state alone has to block a late confirmation.
	return pp.ExpiredAt(time.Now())
}

func (u *webhookUC) cancelExpired(ctx context.Context, p *model.Payment, trackingID string) (Outcome, error) {
	outcome := OutcomeExpired
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.payments.FindByAnyReference(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if locked.Status.Terminal() {
			outcome = OutcomeNoOp
			return nil
		}
		if _, err := u.payments.MarkCancelled(ctx, tx, locked.ID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if err := u.sessions.SetState(ctx, trackingID, model.PendingPaymentStateExpired); err != nil && !errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().Err(err).Str("tracking_id", trackingID).Msg("could not expire pending session")
	}
	u.log.Info().Str("payment_id", p.ID).Str("tracking_id", trackingID).Msg("session expired before confirmation; payment cancelled")
	return outcome, nil
}

func (u *webhookUC) RedirectOutcome(ctx context.Context, ref string) (model.PaymentStatus, error) {
	p, err := u.payments.FindByAnyReference(ctx, repository.NoTX, ref)
	if err != nil {
		return "", err
	}
	return p.Status, nil
}
