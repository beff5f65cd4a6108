// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
	"membership-payments/internal/infra/metrics"
)

// PaymentStatusInfo is the client-facing view of a payment used for polling.
type PaymentStatusInfo struct {
	PaymentID      string
	OrderReference string
	Payable        model.Payable
	Status         model.PaymentStatus
	Amount         int64
	Currency       string
	FailureReason  string
}

type PaymentUseCase interface {
	// Status resolves a payment by any of its references for client polling.
	Status(ctx context.Context, ref string) (*PaymentStatusInfo, error)
	// Refund is the administrative paid -> refunded transition. No gateway
	// call is made; the money movement happens out of band.
	Refund(ctx context.Context, paymentID string) (*model.Payment, error)
}

type paymentUC struct {
	tm       repository.TransactionManager
	payments repository.PaymentRepository
	events   repository.EventRepository
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	tm repository.TransactionManager,
	payments repository.PaymentRepository,
	events repository.EventRepository,
	logger *zerolog.Logger,
) PaymentUseCase {
	l := logger.With().Str("component", "PaymentUseCase").Logger()
	return &paymentUC{tm: tm, payments: payments, events: events, log: &l}
}

func (u *paymentUC) Status(ctx context.Context, ref string) (*PaymentStatusInfo, error) {
	p, err := u.payments.FindByAnyReference(ctx, repository.NoTX, ref)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusInfo{
		PaymentID:      p.ID,
		OrderReference: p.OrderReference,
		Payable:        p.Payable,
		Status:         p.Status,
		Amount:         p.Amount,
		Currency:       p.Currency,
		FailureReason:  p.FailureReason,
	}, nil
}

func (u *paymentUC) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	const op = "payment.Refund"
	var refunded *model.Payment
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByAnyReference(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != model.PaymentStatusPaid {
			return domain.NewError(domain.KindConflict, op, "only paid payments can be refunded", domain.ErrNotRefundable)
		}
		now := time.Now()
		ok, err := u.payments.MarkRefunded(ctx, tx, p.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewError(domain.KindConflict, op, "payment is no longer refundable", domain.ErrNotRefundable)
		}
		p.Status = model.PaymentStatusRefunded
		p.RefundedAt = &now

		// Ticket orders track refunds on the order row too.
		if p.Payable.Kind == model.PayableEventOrder {
			order, err := u.events.FindOrderByID(ctx, tx, p.Payable.ID)
			if err != nil {
				return err
			}
			order.Status = model.EventOrderStatusRefunded
			order.UpdatedAt = now
			if err := u.events.SaveOrder(ctx, tx, order); err != nil {
				return err
			}
		}
		refunded = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncPayment(refunded.Gateway, string(model.PaymentStatusRefunded))
	u.log.Info().Str("payment_id", refunded.ID).Msg("payment refunded")
	return refunded, nil
}
