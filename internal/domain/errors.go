package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyTerminal      = errors.New("payment already in a terminal state")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInsufficientSpots    = errors.New("not enough spots remaining")
	ErrPromoExhausted       = errors.New("promo code exhausted or expired")
	ErrSessionExpired       = errors.New("pending payment session expired")
	ErrAlreadyCheckedIn     = errors.New("ticket already checked in")
	ErrNotRefundable        = errors.New("payment is not refundable")
	ErrInvalidExecContext   = errors.New("invalid executor context")
	ErrOperationFailed      = errors.New("database operation failed")
	ErrReadDatabaseRow      = errors.New("failed to read database row")
	ErrRateLimited          = errors.New("too many requests")
)

// ErrorKind discriminates PaymentError values so callers branch on a typed
// kind instead of parsing error messages.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindAlreadyTerminal ErrorKind = "already_terminal"
	KindGateway         ErrorKind = "gateway"
	KindActivation      ErrorKind = "activation"
	KindValidation      ErrorKind = "validation"
	KindConflict        ErrorKind = "conflict"
)

// PaymentError carries a kind plus the operation that produced it. It wraps
// an underlying error (often one of the sentinels above) so errors.Is keeps
// working across layers.
type PaymentError struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *PaymentError) Error() string {
	if e.Msg != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *PaymentError) Unwrap() error { return e.Err }

// NewError builds a PaymentError.
func NewError(kind ErrorKind, op, msg string, err error) *PaymentError {
	return &PaymentError{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, or "" when err is not a PaymentError.
func KindOf(err error) ErrorKind {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err is a PaymentError of the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }
