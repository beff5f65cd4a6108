//go:build !integration

package web_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"membership-payments/internal/domain/model"
	"membership-payments/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func testInitiationResult() *usecase.InitiationResult {
	return &usecase.InitiationResult{
		Payment: &model.Payment{
			ID:             "pay-1",
			OrderReference: "SUB-01J0000000000000000000",
			Amount:         250000,
			Currency:       "KES",
			Status:         model.PaymentStatusPending,
		},
		TrackingID:  "trk-1",
		RedirectURL: "https://checkout.example/trk-1",
	}
}

// ----- Use case stubs -----

type stubSubscriptionUC struct {
	InitiateFunc func(ctx context.Context, req usecase.InitiateSubscriptionRequest) (*usecase.InitiationResult, error)
	CancelFunc   func(ctx context.Context, userID, reason string) (*model.PlanSubscription, error)

	LastInitiate usecase.InitiateSubscriptionRequest
}

func (s *stubSubscriptionUC) Initiate(ctx context.Context, req usecase.InitiateSubscriptionRequest) (*usecase.InitiationResult, error) {
	s.LastInitiate = req
	if s.InitiateFunc != nil {
		return s.InitiateFunc(ctx, req)
	}
	return testInitiationResult(), nil
}

func (s *stubSubscriptionUC) Cancel(ctx context.Context, userID, reason string) (*model.PlanSubscription, error) {
	if s.CancelFunc != nil {
		return s.CancelFunc(ctx, userID, reason)
	}
	return &model.PlanSubscription{ID: "sub-1", Status: model.SubscriptionStatusCancelled}, nil
}

func (s *stubSubscriptionUC) FinishExpired(ctx context.Context) (int, error) { return 0, nil }

type stubEventOrderUC struct {
	CreateOrderFunc func(ctx context.Context, req usecase.CreateOrderRequest) (*usecase.InitiationResult, error)
	CheckInFunc     func(ctx context.Context, qrToken string) (*model.EventOrder, error)

	LastCreate usecase.CreateOrderRequest
}

func (s *stubEventOrderUC) CreateOrder(ctx context.Context, req usecase.CreateOrderRequest) (*usecase.InitiationResult, error) {
	s.LastCreate = req
	if s.CreateOrderFunc != nil {
		return s.CreateOrderFunc(ctx, req)
	}
	return testInitiationResult(), nil
}

func (s *stubEventOrderUC) CheckIn(ctx context.Context, qrToken string) (*model.EventOrder, error) {
	if s.CheckInFunc != nil {
		return s.CheckInFunc(ctx, qrToken)
	}
	return &model.EventOrder{ID: "order-1", EventID: "event-1", Quantity: 2}, nil
}

type stubDonationUC struct {
	CreateFunc func(ctx context.Context, req usecase.CreateDonationRequest) (*usecase.InitiationResult, error)
}

func (s *stubDonationUC) Create(ctx context.Context, req usecase.CreateDonationRequest) (*usecase.InitiationResult, error) {
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, req)
	}
	return testInitiationResult(), nil
}

func (s *stubDonationUC) Find(ctx context.Context, reference string) (*model.Donation, error) {
	return &model.Donation{ID: "don-1", Reference: reference}, nil
}

type stubPaymentUC struct {
	StatusFunc func(ctx context.Context, ref string) (*usecase.PaymentStatusInfo, error)
	RefundFunc func(ctx context.Context, paymentID string) (*model.Payment, error)

	RefundCalls int
}

func (s *stubPaymentUC) Status(ctx context.Context, ref string) (*usecase.PaymentStatusInfo, error) {
	if s.StatusFunc != nil {
		return s.StatusFunc(ctx, ref)
	}
	return &usecase.PaymentStatusInfo{
		PaymentID:      "pay-1",
		OrderReference: ref,
		Payable:        model.Payable{Kind: model.PayableSubscription, ID: "sub-1"},
		Status:         model.PaymentStatusPaid,
		Amount:         250000,
		Currency:       "KES",
	}, nil
}

func (s *stubPaymentUC) Refund(ctx context.Context, paymentID string) (*model.Payment, error) {
	s.RefundCalls++
	if s.RefundFunc != nil {
		return s.RefundFunc(ctx, paymentID)
	}
	return &model.Payment{ID: paymentID, Status: model.PaymentStatusRefunded}, nil
}

type stubWebhookUC struct {
	mu sync.Mutex

	ProcessFunc  func(ctx context.Context, n usecase.Notification) (usecase.Outcome, error)
	RedirectFunc func(ctx context.Context, ref string) (model.PaymentStatus, error)

	processed []usecase.Notification
	done      chan struct{}
}

func newStubWebhookUC() *stubWebhookUC {
	return &stubWebhookUC{done: make(chan struct{}, 16)}
}

func (s *stubWebhookUC) ProcessNotification(ctx context.Context, n usecase.Notification) (usecase.Outcome, error) {
	s.mu.Lock()
	s.processed = append(s.processed, n)
	s.mu.Unlock()
	defer func() { s.done <- struct{}{} }()
	if s.ProcessFunc != nil {
		return s.ProcessFunc(ctx, n)
	}
	return usecase.OutcomeActivated, nil
}

func (s *stubWebhookUC) RedirectOutcome(ctx context.Context, ref string) (model.PaymentStatus, error) {
	if s.RedirectFunc != nil {
		return s.RedirectFunc(ctx, ref)
	}
	return model.PaymentStatusPaid, nil
}

func (s *stubWebhookUC) Processed() []usecase.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]usecase.Notification, len(s.processed))
	copy(out, s.processed)
	return out
}

type stubLimiter struct {
	allow bool
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, nil
}
