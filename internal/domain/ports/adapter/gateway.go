package adapter

import (
	"context"

	"membership-payments/internal/domain/model"
)

// GatewayStatus is the provider-agnostic outcome of a transaction.
type GatewayStatus string

const (
	GatewayStatusCompleted GatewayStatus = "completed"
	GatewayStatusFailed    GatewayStatus = "failed"
	GatewayStatusCancelled GatewayStatus = "cancelled"
	GatewayStatusPending   GatewayStatus = "pending"
)

// Contact is the payer information providers require on initiation.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// InitiateRequest carries everything a provider needs to open a transaction.
type InitiateRequest struct {
	PaymentID   string
	Payable     model.Payable
	Amount      int64 // minor units
	Currency    string
	Description string
	Reference   string // merchant order reference
	Contact     Contact
	CallbackURL string
}

// InitiateResult is the outcome of opening a transaction. Expected declines
// come back with Success=false and a human-readable Message and a nil error;
// errors are reserved for transport/configuration faults.
type InitiateResult struct {
	Success     bool
	TrackingID  string // gateway-assigned external reference
	RedirectURL string
	Message     string
}

// StatusResult is the current provider-side state of a transaction.
type StatusResult struct {
	Status        GatewayStatus
	TransactionID string // provider confirmation code, if completed
	Method        string
	Raw           map[string]interface{}
}

// PaymentGateway is the port for payment providers. Implementations must be
// swappable (real vs deterministic mock) without changing caller code.
type PaymentGateway interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	CheckStatus(ctx context.Context, trackingID string) (StatusResult, error)
}
