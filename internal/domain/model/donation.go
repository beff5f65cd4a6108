package model

import "time"

type DonationStatus string

const (
	DonationStatusPending DonationStatus = "pending"
	DonationStatusPaid    DonationStatus = "paid"
	DonationStatusFailed  DonationStatus = "failed"
)

// Donation is a one-shot contribution, optionally tied to a campaign.
type Donation struct {
	ID            string // UUID
	CampaignID    *string
	DonorName     string
	DonorEmail    string
	DonorPhone    string
	Amount        int64
	Currency      string
	Status        DonationStatus
	Reference     string // e.g. GEN-1-01J3...
	ReceiptNumber string // assigned on payment, never regenerated
	PaymentID     string
	PaymentDate   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
