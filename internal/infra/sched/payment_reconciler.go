// File: internal/infra/sched/payment_reconciler.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/ports/repository"
	"membership-payments/internal/usecase"
)

// PaymentReconciler periodically scans for stale pending payments and replays
// them through the webhook state machine by querying the gateway. This covers
// lost callbacks and crashes mid-confirmation; processing stays idempotent so
// a race with a late callback is harmless.
type PaymentReconciler struct {
	webhooks   usecase.WebhookUseCase
	payments   repository.PaymentRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(webhooks usecase.WebhookUseCase, payments repository.PaymentRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{webhooks: webhooks, payments: payments, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale pending payments")
		return
	}
	for _, p := range pending {
		if p.ExternalReference == "" {
			// Initiation never completed; nothing to query the gateway with.
			if _, err := w.payments.MarkCancelled(ctx, repository.NoTX, p.ID); err != nil {
				w.log.Error().Err(err).Str("payment_id", p.ID).Msg("cancel orphaned pending payment")
			}
			continue
		}
		outcome, err := w.webhooks.ProcessNotification(ctx, usecase.Notification{TrackingID: p.ExternalReference})
		if err != nil {
			if !domain.IsKind(err, domain.KindNotFound) {
				w.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile failed")
			}
			continue
		}
		w.log.Info().Str("payment_id", p.ID).Str("outcome", string(outcome)).Msg("reconciled stale payment")
	}
}
