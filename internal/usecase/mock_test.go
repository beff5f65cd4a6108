//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Transaction manager
// =============================

// mockTxToken marks "inside a transaction" for repositories that care.
type mockTxToken struct{}

type MockTxManager struct {
	mu    sync.Mutex
	Calls int
}

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	return fn(ctx, mockTxToken{})
}

// =============================
// Repositories
// =============================

// ---- Payments ----

type MockPaymentRepo struct {
	mu       sync.Mutex
	store    map[string]*model.Payment
	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{store: map[string]*model.Payment{}}
}

func (m *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPaymentRepo) FindByAnyReference(_ context.Context, _ repository.Tx, ref string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.MatchesReference(ref) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) SetExternalReference(_ context.Context, _ repository.Tx, id, externalRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ExternalReference = externalRef
	return nil
}

func (m *MockPaymentRepo) MarkPaid(_ context.Context, _ repository.Tx, id, transactionID string, paidAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusPaid
	if transactionID != "" {
		p.TransactionID = transactionID
	}
	p.PaidAt = &paidAt
	return true, nil
}

func (m *MockPaymentRepo) MarkFailed(_ context.Context, _ repository.Tx, id, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	p.FailureReason = reason
	return true, nil
}

func (m *MockPaymentRepo) MarkCancelled(_ context.Context, _ repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusCancelled
	return true, nil
}

func (m *MockPaymentRepo) MarkRefunded(_ context.Context, _ repository.Tx, id string, refundedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPaid {
		return false, nil
	}
	p.Status = model.PaymentStatusRefunded
	p.RefundedAt = &refundedAt
	return true, nil
}

func (m *MockPaymentRepo) FindPaidByPayable(_ context.Context, _ repository.Tx, payable model.Payable) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Payable == payable && p.Status == model.PaymentStatusPaid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Get returns the stored payment for assertions.
func (m *MockPaymentRepo) Get(id string) *model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.store[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- Subscriptions ----

type MockSubscriptionRepo struct {
	mu           sync.Mutex
	subs         map[string]*model.PlanSubscription
	enhancements map[string]*model.SubscriptionEnhancement // keyed by subscription id
	SaveErr      error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{
		subs:         map[string]*model.PlanSubscription{},
		enhancements: map[string]*model.SubscriptionEnhancement{},
	}
}

func (m *MockSubscriptionRepo) Save(_ context.Context, _ repository.Tx, s *model.PlanSubscription) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.PlanSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByUserAndPlan(_ context.Context, _ repository.Tx, userID, planID string) (*model.PlanSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.PlanID == planID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) FindActiveByUser(_ context.Context, _ repository.Tx, userID string) ([]*model.PlanSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PlanSubscription
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListByUser(_ context.Context, _ repository.Tx, userID string) ([]*model.PlanSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PlanSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) ListActiveEndedBefore(_ context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.PlanSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PlanSubscription
	for _, s := range m.subs {
		if s.Status == model.SubscriptionStatusActive && s.EndsAt.Before(cutoff) {
			cp := *s
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockSubscriptionRepo) SaveEnhancement(_ context.Context, _ repository.Tx, e *model.SubscriptionEnhancement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.enhancements[e.SubscriptionID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindEnhancementBySubscription(_ context.Context, _ repository.Tx, subscriptionID string) (*model.SubscriptionEnhancement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enhancements[subscriptionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// GetSub returns the stored subscription for assertions.
func (m *MockSubscriptionRepo) GetSub(id string) *model.PlanSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// GetEnhancement returns the stored enhancement for assertions.
func (m *MockSubscriptionRepo) GetEnhancement(subID string) *model.SubscriptionEnhancement {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.enhancements[subID]; ok {
		cp := *e
		return &cp
	}
	return nil
}

// ---- Plans ----

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.Plan
}

func NewMockPlanRepo() *MockPlanRepo { return &MockPlanRepo{store: map[string]*model.Plan{}} }

func (m *MockPlanRepo) Save(_ context.Context, _ repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) List(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Plan
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- Users ----

type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User
}

func NewMockUserRepo() *MockUserRepo { return &MockUserRepo{store: map[string]*model.User{}} }

func (m *MockUserRepo) Save(_ context.Context, _ repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) SetSubscriptionFields(_ context.Context, _ repository.Tx, userID, status string, activeSubscriptionID, planID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.SubscriptionStatus = status
	u.ActiveSubscriptionID = activeSubscriptionID
	u.PlanID = planID
	return nil
}

// Get returns the stored user for assertions.
func (m *MockUserRepo) Get(id string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.store[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

// ---- Events ----

type MockEventRepo struct {
	mu     sync.Mutex
	events map[string]*model.Event
	orders map[string]*model.EventOrder
	promos map[string]*model.PromoCode // keyed by code
}

func NewMockEventRepo() *MockEventRepo {
	return &MockEventRepo{
		events: map[string]*model.Event{},
		orders: map[string]*model.EventOrder{},
		promos: map[string]*model.PromoCode{},
	}
}

func (m *MockEventRepo) SaveEvent(_ context.Context, _ repository.Tx, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[e.ID] = &cp
	return nil
}

func (m *MockEventRepo) FindEventByID(_ context.Context, _ repository.Tx, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEventRepo) CountReservedSpots(_ context.Context, _ repository.Tx, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, o := range m.orders {
		if o.EventID == eventID && (o.Status == model.EventOrderStatusPending || o.Status == model.EventOrderStatusPaid) {
			n += o.Quantity
		}
	}
	return n, nil
}

func (m *MockEventRepo) SaveOrder(_ context.Context, _ repository.Tx, o *model.EventOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MockEventRepo) FindOrderByID(_ context.Context, _ repository.Tx, id string) (*model.EventOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockEventRepo) FindOrderByQRToken(_ context.Context, _ repository.Tx, token string) (*model.EventOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.QRCodeToken == token {
			cp := *o
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockEventRepo) SavePromoCode(_ context.Context, _ repository.Tx, p *model.PromoCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.promos[p.Code] = &cp
	return nil
}

func (m *MockEventRepo) FindPromoCode(_ context.Context, _ repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.promos[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockEventRepo) IncrementPromoUses(_ context.Context, _ repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.promos {
		if p.ID == id {
			p.Uses++
			return nil
		}
	}
	return domain.ErrNotFound
}

// GetOrder returns the stored order for assertions.
func (m *MockEventRepo) GetOrder(id string) *model.EventOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

// GetPromo returns the stored promo code for assertions.
func (m *MockEventRepo) GetPromo(code string) *model.PromoCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.promos[code]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// ---- Donations ----

type MockDonationRepo struct {
	mu    sync.Mutex
	store map[string]*model.Donation
}

func NewMockDonationRepo() *MockDonationRepo {
	return &MockDonationRepo{store: map[string]*model.Donation{}}
}

func (m *MockDonationRepo) Save(_ context.Context, _ repository.Tx, d *model.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *MockDonationRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockDonationRepo) FindByReference(_ context.Context, _ repository.Tx, reference string) (*model.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.store {
		if d.Reference == reference {
			cp := *d
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Get returns the stored donation for assertions.
func (m *MockDonationRepo) Get(id string) *model.Donation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.store[id]; ok {
		cp := *d
		return &cp
	}
	return nil
}

// =============================
// Pending payment session store
// =============================

type MockSessionStore struct {
	mu    sync.Mutex
	store map[string]*model.PendingPayment
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{store: map[string]*model.PendingPayment{}}
}

func (m *MockSessionStore) Put(_ context.Context, pp *model.PendingPayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pp
	m.store[pp.TrackingID] = &cp
	return nil
}

func (m *MockSessionStore) Get(_ context.Context, trackingID string) (*model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pp, ok := m.store[trackingID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pp
	return &cp, nil
}

func (m *MockSessionStore) SetState(_ context.Context, trackingID string, state model.PendingPaymentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pp, ok := m.store[trackingID]
	if !ok {
		return domain.ErrNotFound
	}
	pp.State = state
	return nil
}

func (m *MockSessionStore) ListStale(_ context.Context, now time.Time, limit int) ([]*model.PendingPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingPayment
	for _, pp := range m.store {
		if pp.State == model.PendingPaymentStatePending && now.After(pp.ExpiresAt) {
			cp := *pp
			out = append(out, &cp)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// =============================
// Gateway
// =============================

// MockPaymentGateway is a scriptable gateway. Defaults: initiation succeeds
// with a fresh tracking id, status checks report completed.
type MockPaymentGateway struct {
	mu              sync.Mutex
	GatewayName     string
	InitiateFunc    func(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error)
	CheckStatusFunc func(ctx context.Context, trackingID string) (adapter.StatusResult, error)
	InitiateCalls   []adapter.InitiateRequest
	LastTrackingID  string
}

func (g *MockPaymentGateway) Name() string {
	if g.GatewayName == "" {
		return "mock"
	}
	return g.GatewayName
}

func (g *MockPaymentGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	g.mu.Lock()
	g.InitiateCalls = append(g.InitiateCalls, req)
	g.mu.Unlock()
	if g.InitiateFunc != nil {
		return g.InitiateFunc(ctx, req)
	}
	tid := uuid.NewString()
	g.mu.Lock()
	g.LastTrackingID = tid
	g.mu.Unlock()
	return adapter.InitiateResult{Success: true, TrackingID: tid, RedirectURL: "https://checkout.example/" + tid}, nil
}

func (g *MockPaymentGateway) CheckStatus(ctx context.Context, trackingID string) (adapter.StatusResult, error) {
	if g.CheckStatusFunc != nil {
		return g.CheckStatusFunc(ctx, trackingID)
	}
	return adapter.StatusResult{Status: adapter.GatewayStatusCompleted, TransactionID: "TXN-" + trackingID}, nil
}

// testResolver satisfies usecase.GatewayResolver with a single gateway.
type testResolver struct{ gw adapter.PaymentGateway }

func (r testResolver) Get(name string) (adapter.PaymentGateway, error) {
	if name != "" && name != r.gw.Name() {
		return nil, domain.ErrNotFound
	}
	return r.gw, nil
}

func (r testResolver) Default() adapter.PaymentGateway { return r.gw }
