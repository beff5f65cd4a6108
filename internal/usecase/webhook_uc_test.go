//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/usecase"
)

type webhookDeps struct {
	tm        *MockTxManager
	payments  *MockPaymentRepo
	subs      *MockSubscriptionRepo
	users     *MockUserRepo
	events    *MockEventRepo
	donations *MockDonationRepo
	sessions  *MockSessionStore
	gateway   *MockPaymentGateway
	uc        usecase.WebhookUseCase
}

func newWebhookDeps() *webhookDeps {
	d := &webhookDeps{
		tm:        NewMockTxManager(),
		payments:  NewMockPaymentRepo(),
		subs:      NewMockSubscriptionRepo(),
		users:     NewMockUserRepo(),
		events:    NewMockEventRepo(),
		donations: NewMockDonationRepo(),
		sessions:  NewMockSessionStore(),
		gateway:   &MockPaymentGateway{},
	}
	activator := usecase.NewActivator(d.subs, d.users, d.events, d.donations, newTestLogger())
	d.uc = usecase.NewWebhookUseCase(d.tm, d.payments, d.sessions, testResolver{d.gateway}, activator, newTestLogger())
	return d
}

// seedSubscription creates a user, a payment_pending subscription with its
// enhancement, the pending payment and a live session for tracking id trk.
func seedSubscription(t *testing.T, d *webhookDeps, trk string) (*model.PlanSubscription, *model.Payment) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	user := &model.User{ID: "user-1", Email: "member@example.com"}
	if err := d.users.Save(ctx, nil, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	sub := &model.PlanSubscription{
		ID:            "sub-1",
		UserID:        user.ID,
		PlanID:        "plan-1",
		BillingPeriod: model.BillingMonthly,
		Status:        model.SubscriptionStatusPaymentPending,
		EndsAt:        now.AddDate(0, 1, 0),
		CreatedAt:     now,
	}
	if err := d.subs.Save(ctx, nil, sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	enh := &model.SubscriptionEnhancement{
		ID:                 "enh-1",
		SubscriptionID:     sub.ID,
		Status:             model.EnhancementStatusPaymentPending,
		MaxRenewalAttempts: 3,
	}
	if err := d.subs.SaveEnhancement(ctx, nil, enh); err != nil {
		t.Fatalf("seed enhancement: %v", err)
	}
	p := &model.Payment{
		ID:                "pay-1",
		Payable:           model.Payable{Kind: model.PayableSubscription, ID: sub.ID},
		Gateway:           "mock",
		Status:            model.PaymentStatusPending,
		Amount:            250000,
		Currency:          "KES",
		ExternalReference: trk,
		OrderReference:    "SUB-01J000000000000000000000",
		CreatedAt:         now,
	}
	if err := d.payments.Save(ctx, nil, p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	session := &model.PendingPayment{
		TrackingID: trk,
		PaymentID:  p.ID,
		Payable:    p.Payable,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Phone:      "254700000123",
		State:      model.PendingPaymentStatePending,
		ExpiresAt:  now.Add(30 * time.Minute),
		CreatedAt:  now,
	}
	if err := d.sessions.Put(ctx, session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sub, p
}

func TestWebhookUseCase_ProcessNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("completed notification activates the subscription", func(t *testing.T) {
		// --- Arrange ---
		d := newWebhookDeps()
		sub, p := seedSubscription(t, d, "trk-1")

		// --- Act ---
		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID:    "trk-1",
			Status:        adapter.GatewayStatusCompleted,
			TransactionID: "TXN-123",
		})

		// --- Assert ---
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomeActivated {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomeActivated)
		}
		got := d.payments.Get(p.ID)
		if got.Status != model.PaymentStatusPaid {
			t.Errorf("payment status = %s, want paid", got.Status)
		}
		if got.TransactionID != "TXN-123" {
			t.Errorf("transaction id = %q, want TXN-123", got.TransactionID)
		}
		if s := d.subs.GetSub(sub.ID); s.Status != model.SubscriptionStatusActive {
			t.Errorf("subscription status = %s, want active", s.Status)
		}
		if e := d.subs.GetEnhancement(sub.ID); e.Status != model.EnhancementStatusActive {
			t.Errorf("enhancement status = %s, want active", e.Status)
		}
		u := d.users.Get(sub.UserID)
		if u.SubscriptionStatus != "active" || u.ActiveSubscriptionID == nil || *u.ActiveSubscriptionID != sub.ID {
			t.Errorf("user subscription fields not stamped: %+v", u)
		}
	})

	t.Run("duplicate deliveries are no-ops", func(t *testing.T) {
		d := newWebhookDeps()
		_, p := seedSubscription(t, d, "trk-1")
		n := usecase.Notification{TrackingID: "trk-1", Status: adapter.GatewayStatusCompleted, TransactionID: "TXN-123"}

		first, err := d.uc.ProcessNotification(ctx, n)
		if err != nil || first != usecase.OutcomeActivated {
			t.Fatalf("first delivery: outcome=%s err=%v", first, err)
		}
		paidAt := *d.payments.Get(p.ID).PaidAt

		for i := 0; i < 3; i++ {
			outcome, err := d.uc.ProcessNotification(ctx, n)
			if err != nil {
				t.Fatalf("redelivery %d: %v", i, err)
			}
			if outcome != usecase.OutcomeNoOp {
				t.Errorf("redelivery %d outcome = %s, want %s", i, outcome, usecase.OutcomeNoOp)
			}
		}
		if got := *d.payments.Get(p.ID).PaidAt; !got.Equal(paidAt) {
			t.Errorf("paid_at changed on redelivery: %v -> %v", paidAt, got)
		}
	})

	t.Run("missing status queries the gateway", func(t *testing.T) {
		d := newWebhookDeps()
		_, p := seedSubscription(t, d, "trk-1")

		var queried string
		d.gateway.CheckStatusFunc = func(_ context.Context, trackingID string) (adapter.StatusResult, error) {
			queried = trackingID
			return adapter.StatusResult{Status: adapter.GatewayStatusCompleted, TransactionID: "TXN-Q"}, nil
		}

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{TrackingID: "trk-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if queried != "trk-1" {
			t.Errorf("gateway queried with %q, want trk-1", queried)
		}
		if outcome != usecase.OutcomeActivated {
			t.Errorf("outcome = %s, want %s", outcome, usecase.OutcomeActivated)
		}
		if got := d.payments.Get(p.ID); got.TransactionID != "TXN-Q" {
			t.Errorf("transaction id = %q, want TXN-Q", got.TransactionID)
		}
	})

	t.Run("completed renewal extends the active period exactly once", func(t *testing.T) {
		d := newWebhookDeps()
		now := time.Now()
		endsAt := now.AddDate(0, 0, 10)
		_ = d.users.Save(ctx, nil, &model.User{ID: "user-1"})
		_ = d.subs.Save(ctx, nil, &model.PlanSubscription{
			ID: "sub-1", UserID: "user-1", PlanID: "plan-1",
			BillingPeriod: model.BillingMonthly,
			Status:        model.SubscriptionStatusActive, StartsAt: &now, EndsAt: endsAt,
		})
		_ = d.subs.SaveEnhancement(ctx, nil, &model.SubscriptionEnhancement{
			ID: "enh-1", SubscriptionID: "sub-1",
			Status: model.EnhancementStatusActive, MaxRenewalAttempts: 3,
		})
		_ = d.payments.Save(ctx, nil, &model.Payment{
			ID:                "pay-renew",
			Payable:           model.Payable{Kind: model.PayableSubscription, ID: "sub-1"},
			Gateway:           "mock",
			Status:            model.PaymentStatusPending,
			Amount:            250000,
			Currency:          "KES",
			ExternalReference: "trk-renew",
			OrderReference:    "SUB-01J000000000000000000001",
			Meta:              map[string]interface{}{"billing_period": "monthly"},
			CreatedAt:         now,
		})

		n := usecase.Notification{TrackingID: "trk-renew", Status: adapter.GatewayStatusCompleted}
		outcome, err := d.uc.ProcessNotification(ctx, n)
		if err != nil || outcome != usecase.OutcomeActivated {
			t.Fatalf("outcome=%s err=%v", outcome, err)
		}
		want := model.BillingMonthly.End(endsAt)
		if s := d.subs.GetSub("sub-1"); !s.EndsAt.Equal(want) {
			t.Errorf("ends_at = %v, want %v", s.EndsAt, want)
		}

		if outcome, err := d.uc.ProcessNotification(ctx, n); err != nil || outcome != usecase.OutcomeNoOp {
			t.Fatalf("redelivery outcome=%s err=%v", outcome, err)
		}
		if s := d.subs.GetSub("sub-1"); !s.EndsAt.Equal(want) {
			t.Errorf("period extended twice: %v", s.EndsAt)
		}
	})

	t.Run("failed status records the failure on the enhancement", func(t *testing.T) {
		d := newWebhookDeps()
		sub, p := seedSubscription(t, d, "trk-1")

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID: "trk-1",
			Status:     adapter.GatewayStatusFailed,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomeFailed {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomeFailed)
		}
		if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusFailed {
			t.Errorf("payment status = %s, want failed", got.Status)
		}
		e := d.subs.GetEnhancement(sub.ID)
		if e.RenewalAttempts != 1 || e.PaymentFailureState == nil {
			t.Errorf("enhancement failure not recorded: %+v", e)
		}
		if e.Status != model.EnhancementStatusPaymentPending {
			t.Errorf("enhancement status = %s, want payment_pending (retryable)", e.Status)
		}
	})

	t.Run("cancelled status cancels the payment", func(t *testing.T) {
		d := newWebhookDeps()
		_, p := seedSubscription(t, d, "trk-1")

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID: "trk-1",
			Status:     adapter.GatewayStatusCancelled,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomeCancelled {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomeCancelled)
		}
		if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusCancelled {
			t.Errorf("payment status = %s, want cancelled", got.Status)
		}
	})

	t.Run("pending status leaves everything untouched", func(t *testing.T) {
		d := newWebhookDeps()
		_, p := seedSubscription(t, d, "trk-1")

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID: "trk-1",
			Status:     adapter.GatewayStatusPending,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomePending {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomePending)
		}
		if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusPending {
			t.Errorf("payment status = %s, want pending", got.Status)
		}
	})

	t.Run("expired session beats a completed status", func(t *testing.T) {
		d := newWebhookDeps()
		sub, p := seedSubscription(t, d, "trk-1")

		// Push the session past its deadline.
		session, _ := d.sessions.Get(ctx, "trk-1")
		session.ExpiresAt = time.Now().Add(-time.Minute)
		if err := d.sessions.Put(ctx, session); err != nil {
			t.Fatalf("reseed session: %v", err)
		}

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID:    "trk-1",
			Status:        adapter.GatewayStatusCompleted,
			TransactionID: "TXN-LATE",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomeExpired {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomeExpired)
		}
		if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusCancelled {
			t.Errorf("payment status = %s, want cancelled", got.Status)
		}
		if s := d.subs.GetSub(sub.ID); s.Status == model.SubscriptionStatusActive {
			t.Error("subscription activated despite expired session")
		}
		if ses, _ := d.sessions.Get(ctx, "trk-1"); ses.State != model.PendingPaymentStateExpired {
			t.Errorf("session state = %s, want expired", ses.State)
		}
	})

	t.Run("session flagged expired blocks a completed status before its deadline", func(t *testing.T) {
		d := newWebhookDeps()
		sub, p := seedSubscription(t, d, "trk-1")

		// The sweeper flips the session first; the deadline itself has not
		// passed yet.
		if err := d.sessions.SetState(ctx, "trk-1", model.PendingPaymentStateExpired); err != nil {
			t.Fatalf("flag session: %v", err)
		}

		outcome, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID:    "trk-1",
			Status:        adapter.GatewayStatusCompleted,
			TransactionID: "TXN-LATE",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if outcome != usecase.OutcomeExpired {
			t.Fatalf("outcome = %s, want %s", outcome, usecase.OutcomeExpired)
		}
		if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusCancelled {
			t.Errorf("payment status = %s, want cancelled", got.Status)
		}
		if s := d.subs.GetSub(sub.ID); s.Status == model.SubscriptionStatusActive {
			t.Error("subscription activated despite expired session")
		}
	})

	t.Run("unknown reference is reported as not found", func(t *testing.T) {
		d := newWebhookDeps()
		_, err := d.uc.ProcessNotification(ctx, usecase.Notification{TrackingID: "no-such"})
		if !domain.IsKind(err, domain.KindNotFound) {
			t.Fatalf("error kind = %v, want KindNotFound (err=%v)", domain.KindOf(err), err)
		}
	})

	t.Run("activation error surfaces so the transaction rolls back", func(t *testing.T) {
		d := newWebhookDeps()
		sub, _ := seedSubscription(t, d, "trk-1")
		// Break the activation path after MarkPaid succeeded.
		d.subs.SaveErr = domain.ErrOperationFailed
		_ = sub

		_, err := d.uc.ProcessNotification(ctx, usecase.Notification{
			TrackingID: "trk-1",
			Status:     adapter.GatewayStatusCompleted,
		})
		if !domain.IsKind(err, domain.KindActivation) {
			t.Fatalf("error kind = %v, want KindActivation (err=%v)", domain.KindOf(err), err)
		}
	})
}

func TestWebhookUseCase_OneShotActivation(t *testing.T) {
	ctx := context.Background()

	t.Run("event order gets one receipt and one promo use across redeliveries", func(t *testing.T) {
		d := newWebhookDeps()
		now := time.Now()

		promo := &model.PromoCode{ID: "promo-1", Code: "LAUNCH", PercentOff: 20, MaxUses: 10}
		if err := d.events.SavePromoCode(ctx, nil, promo); err != nil {
			t.Fatalf("seed promo: %v", err)
		}
		promoID := promo.ID
		order := &model.EventOrder{
			ID:          "order-1",
			EventID:     "event-1",
			UserID:      "user-1",
			Quantity:    2,
			TotalAmount: 160000,
			Currency:    "KES",
			Status:      model.EventOrderStatusPending,
			Reference:   "EVT-01J000000000000000000000",
			QRCodeToken: "qr-1",
			PromoCodeID: &promoID,
			CreatedAt:   now,
		}
		if err := d.events.SaveOrder(ctx, nil, order); err != nil {
			t.Fatalf("seed order: %v", err)
		}
		p := &model.Payment{
			ID:                "pay-evt",
			Payable:           model.Payable{Kind: model.PayableEventOrder, ID: order.ID},
			Gateway:           "mock",
			Status:            model.PaymentStatusPending,
			Amount:            order.TotalAmount,
			Currency:          "KES",
			ExternalReference: "trk-evt",
			OrderReference:    order.Reference,
			CreatedAt:         now,
		}
		if err := d.payments.Save(ctx, nil, p); err != nil {
			t.Fatalf("seed payment: %v", err)
		}

		n := usecase.Notification{TrackingID: "trk-evt", Status: adapter.GatewayStatusCompleted}
		if _, err := d.uc.ProcessNotification(ctx, n); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		got := d.events.GetOrder(order.ID)
		if got.Status != model.EventOrderStatusPaid || got.PurchasedAt == nil {
			t.Fatalf("order not activated: %+v", got)
		}
		receipt := got.ReceiptNumber
		if receipt == "" {
			t.Fatal("receipt number not assigned")
		}

		for i := 0; i < 2; i++ {
			if _, err := d.uc.ProcessNotification(ctx, n); err != nil {
				t.Fatalf("redelivery %d: %v", i, err)
			}
		}
		if got := d.events.GetOrder(order.ID); got.ReceiptNumber != receipt {
			t.Errorf("receipt regenerated: %q -> %q", receipt, got.ReceiptNumber)
		}
		if got := d.events.GetPromo("LAUNCH"); got.Uses != 1 {
			t.Errorf("promo uses = %d, want exactly 1", got.Uses)
		}
	})

	t.Run("donation gets paid once with a stable receipt", func(t *testing.T) {
		d := newWebhookDeps()
		now := time.Now()

		donation := &model.Donation{
			ID:        "don-1",
			DonorName: "A. Donor",
			Amount:    50000,
			Currency:  "KES",
			Status:    model.DonationStatusPending,
			Reference: "GEN-01J000000000000000000000",
			CreatedAt: now,
		}
		if err := d.donations.Save(ctx, nil, donation); err != nil {
			t.Fatalf("seed donation: %v", err)
		}
		p := &model.Payment{
			ID:                "pay-don",
			Payable:           model.Payable{Kind: model.PayableDonation, ID: donation.ID},
			Gateway:           "mock",
			Status:            model.PaymentStatusPending,
			Amount:            donation.Amount,
			Currency:          "KES",
			ExternalReference: "trk-don",
			OrderReference:    donation.Reference,
			CreatedAt:         now,
		}
		if err := d.payments.Save(ctx, nil, p); err != nil {
			t.Fatalf("seed payment: %v", err)
		}

		n := usecase.Notification{TrackingID: "trk-don", Status: adapter.GatewayStatusCompleted}
		if _, err := d.uc.ProcessNotification(ctx, n); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		got := d.donations.Get(donation.ID)
		if got.Status != model.DonationStatusPaid || got.PaymentDate == nil || got.PaymentID != p.ID {
			t.Fatalf("donation not activated: %+v", got)
		}
		receipt := got.ReceiptNumber

		if _, err := d.uc.ProcessNotification(ctx, n); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if got := d.donations.Get(donation.ID); got.ReceiptNumber != receipt {
			t.Errorf("receipt regenerated: %q -> %q", receipt, got.ReceiptNumber)
		}
	})
}

func TestWebhookUseCase_RedirectOutcome(t *testing.T) {
	ctx := context.Background()
	d := newWebhookDeps()
	_, p := seedSubscription(t, d, "trk-1")

	// The browser redirect must not mutate anything.
	status, err := d.uc.RedirectOutcome(ctx, "trk-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != model.PaymentStatusPending {
		t.Errorf("status = %s, want pending", status)
	}
	if got := d.payments.Get(p.ID); got.Status != model.PaymentStatusPending {
		t.Errorf("redirect mutated payment to %s", got.Status)
	}
	if d.tm.Calls != 0 {
		t.Errorf("redirect opened %d transactions, want 0", d.tm.Calls)
	}
}
