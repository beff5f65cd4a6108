package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
)

// MockGateway is a deterministic in-process gateway for non-production
// environments. Initiation creates a pending session in the store so a later
// completion call can recover the order context; outcomes are forced by the
// payer's phone suffix:
//
//	...0000 -> failed
//	...1111 -> stays pending
//	anything else -> completed
type MockGateway struct {
	sessions   repository.PendingPaymentStore
	sessionTTL time.Duration
	baseURL    string // where the fake checkout page would live
}

func NewMockGateway(sessions repository.PendingPaymentStore, sessionTTL time.Duration, baseURL string) *MockGateway {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &MockGateway{sessions: sessions, sessionTTL: sessionTTL, baseURL: baseURL}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	if req.Amount <= 0 {
		return adapter.InitiateResult{Success: false, Message: "amount must be positive"}, nil
	}

	trackingID := uuid.NewString()
	now := time.Now()
	session := &model.PendingPayment{
		TrackingID: trackingID,
		PaymentID:  req.PaymentID,
		Payable:    req.Payable,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Phone:      req.Contact.Phone,
		State:      model.PendingPaymentStatePending,
		ExpiresAt:  now.Add(g.sessionTTL),
		CreatedAt:  now,
	}
	if err := g.sessions.Put(ctx, session); err != nil {
		return adapter.InitiateResult{}, fmt.Errorf("store pending session: %w", err)
	}

	return adapter.InitiateResult{
		Success:     true,
		TrackingID:  trackingID,
		RedirectURL: fmt.Sprintf("%s/mock-checkout/%s", g.baseURL, trackingID),
	}, nil
}

func (g *MockGateway) CheckStatus(ctx context.Context, trackingID string) (adapter.StatusResult, error) {
	session, err := g.sessions.Get(ctx, trackingID)
	if err != nil {
		if err == domain.ErrNotFound {
			return adapter.StatusResult{}, domain.ErrNotFound
		}
		return adapter.StatusResult{}, err
	}

	status := ResolveOutcome(session.Phone)
	if session.State == model.PendingPaymentStateExpired {
		status = adapter.GatewayStatusCancelled
	}
	res := adapter.StatusResult{
		Status: status,
		Method: "mock",
		Raw: map[string]interface{}{
			"tracking_id": trackingID,
			"phone":       session.Phone,
			"state":       string(session.State),
		},
	}
	if status == adapter.GatewayStatusCompleted {
		res.TransactionID = "MOCK-" + strings.ToUpper(trackingID[:8])
	}
	return res, nil
}

// ResolveOutcome is the fixed phone-pattern mapping used for exhaustive
// branch coverage without a real gateway.
func ResolveOutcome(phone string) adapter.GatewayStatus {
	switch {
	case strings.HasSuffix(phone, "0000"):
		return adapter.GatewayStatusFailed
	case strings.HasSuffix(phone, "1111"):
		return adapter.GatewayStatusPending
	default:
		return adapter.GatewayStatusCompleted
	}
}
