package model

import (
	"time"

	"membership-payments/internal/domain"
)

// BillingPeriod is the subscription billing cadence.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch BillingPeriod(s) {
	case BillingMonthly, BillingYearly:
		return BillingPeriod(s), nil
	}
	return "", domain.ErrInvalidArgument
}

// End computes the end of a billing period starting at from.
func (b BillingPeriod) End(from time.Time) time.Time {
	if b == BillingYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// Plan is a membership tier users subscribe to.
type Plan struct {
	ID           string // UUID
	Name         string
	MonthlyPrice int64 // minor units
	YearlyPrice  int64
	Currency     string
	Active       bool
	CreatedAt    time.Time
}

// Price returns the charge for one billing period.
func (p *Plan) Price(period BillingPeriod) int64 {
	if period == BillingYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

func NewPlan(id, name string, monthly, yearly int64, currency string) (*Plan, error) {
	if id == "" || name == "" || monthly <= 0 || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	if yearly <= 0 {
		yearly = monthly * 12
	}
	return &Plan{ID: id, Name: name, MonthlyPrice: monthly, YearlyPrice: yearly, Currency: currency, Active: true, CreatedAt: time.Now()}, nil
}
