// File: internal/infra/sched/session_sweeper.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/repository"
	"membership-payments/internal/infra/metrics"
)

// SessionSweeper expires pending payment sessions past their deadline and
// cancels the backing payment rows. The cache TTL eventually drops entries on
// its own; the sweeper exists so the durable payment does not stay pending
// until the reconciler's stale window kicks in.
type SessionSweeper struct {
	sessions repository.PendingPaymentStore
	payments repository.PaymentRepository
	interval time.Duration
	log      *zerolog.Logger
}

func NewSessionSweeper(sessions repository.PendingPaymentStore, payments repository.PaymentRepository, interval time.Duration, logger *zerolog.Logger) *SessionSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	l := logger.With().Str("component", "SessionSweeper").Logger()
	return &SessionSweeper{sessions: sessions, payments: payments, interval: interval, log: &l}
}

func (w *SessionSweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("starting session sweeper")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping session sweeper")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *SessionSweeper) tick(ctx context.Context) {
	stale, err := w.sessions.ListStale(ctx, time.Now(), 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale sessions")
		return
	}
	var n int
	for _, s := range stale {
		if err := w.sessions.SetState(ctx, s.TrackingID, model.PendingPaymentStateExpired); err != nil {
			w.log.Error().Err(err).Str("tracking_id", s.TrackingID).Msg("expire session")
			continue
		}
		// Cancel is status-guarded: it is a no-op when a late confirmation won.
		if _, err := w.payments.MarkCancelled(ctx, repository.NoTX, s.PaymentID); err != nil {
			w.log.Error().Err(err).Str("payment_id", s.PaymentID).Msg("cancel payment for expired session")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.IncSessionsSwept(n)
		w.log.Info().Int("count", n).Msg("stale sessions expired")
	}
}
