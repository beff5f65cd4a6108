package model

import "time"

// Event is a ticketed happening with a fixed capacity.
type Event struct {
	ID          string // UUID
	Name        string
	Capacity    int
	TicketPrice int64 // minor units
	Currency    string
	StartsAt    time.Time
	CreatedAt   time.Time
}

type EventOrderStatus string

const (
	EventOrderStatusPending  EventOrderStatus = "pending"
	EventOrderStatusPaid     EventOrderStatus = "paid"
	EventOrderStatusRefunded EventOrderStatus = "refunded"
)

// EventOrder is a ticket purchase. The QR token is issued exactly once at
// creation and is the sole check-in credential.
type EventOrder struct {
	ID                       string // UUID
	EventID                  string
	UserID                   string
	Quantity                 int
	UnitPrice                int64
	OriginalAmount           int64
	PromoDiscountAmount      int64
	SubscriberDiscountAmount int64
	TotalAmount              int64
	Currency                 string
	Status                   EventOrderStatus
	Reference                string // merchant order reference (ULID)
	ReceiptNumber            string // assigned on payment, never regenerated
	QRCodeToken              string
	PromoCodeID              *string
	PurchasedAt              *time.Time
	CheckedInAt              *time.Time // one-way: nil -> set
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// PromoCode grants a percentage discount on event orders, limited by use
// count and expiry.
type PromoCode struct {
	ID         string // UUID
	Code       string
	PercentOff int
	MaxUses    int
	Uses       int
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Usable reports whether the code can still be applied at now.
func (p *PromoCode) Usable(now time.Time) bool {
	if p.MaxUses > 0 && p.Uses >= p.MaxUses {
		return false
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return false
	}
	return true
}
