// File: internal/usecase/donation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/domain/ports/repository"
)

// CreateDonationRequest opens a one-shot contribution.
type CreateDonationRequest struct {
	CampaignID *string
	DonorName  string
	DonorEmail string
	DonorPhone string
	Amount     int64 // minor units
	Currency   string
	Gateway    string // empty means the configured default
}

type DonationUseCase interface {
	Create(ctx context.Context, req CreateDonationRequest) (*InitiationResult, error)
	Find(ctx context.Context, reference string) (*model.Donation, error)
}

type donationUC struct {
	tm        repository.TransactionManager
	donations repository.DonationRepository
	payments  repository.PaymentRepository
	gateways  GatewayResolver
	checkout  *checkout
	log       *zerolog.Logger
}

func NewDonationUseCase(
	tm repository.TransactionManager,
	donations repository.DonationRepository,
	payments repository.PaymentRepository,
	sessions repository.PendingPaymentStore,
	gateways GatewayResolver,
	sessionTTL time.Duration,
	callbackURL string,
	logger *zerolog.Logger,
) DonationUseCase {
	l := logger.With().Str("component", "DonationUseCase").Logger()
	return &donationUC{
		tm:        tm,
		donations: donations,
		payments:  payments,
		gateways:  gateways,
		checkout:  &checkout{payments: payments, sessions: sessions, sessionTTL: sessionTTL, callbackURL: callbackURL, log: &l},
		log:       &l,
	}
}

func (u *donationUC) Create(ctx context.Context, req CreateDonationRequest) (*InitiationResult, error) {
	const op = "donation.Create"
	if req.Amount <= 0 {
		return nil, domain.NewError(domain.KindValidation, op, "amount must be positive", domain.ErrInvalidArgument)
	}
	if req.Currency == "" || req.DonorEmail == "" {
		return nil, domain.NewError(domain.KindValidation, op, "currency and donor email are required", domain.ErrInvalidArgument)
	}
	gw, err := u.gateways.Get(req.Gateway)
	if err != nil {
		return nil, domain.NewError(domain.KindGateway, op, "unknown gateway "+req.Gateway, err)
	}

	// General donations use the bare GEN prefix; campaign donations carry the
	// campaign id so receipts sort by campaign.
	refPrefix := "GEN"
	if req.CampaignID != nil && *req.CampaignID != "" {
		refPrefix = "GEN-" + *req.CampaignID
	}

	var payment *model.Payment
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		now := time.Now()
		donation := &model.Donation{
			ID:         newUUID(),
			CampaignID: req.CampaignID,
			DonorName:  req.DonorName,
			DonorEmail: req.DonorEmail,
			DonorPhone: req.DonorPhone,
			Amount:     req.Amount,
			Currency:   req.Currency,
			Status:     model.DonationStatusPending,
			Reference:  newOrderReference(refPrefix),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := u.donations.Save(ctx, tx, donation); err != nil {
			return err
		}
		payment = newPendingPayment(
			model.Payable{Kind: model.PayableDonation, ID: donation.ID},
			gw.Name(), req.Amount, req.Currency, donation.Reference,
		)
		return u.payments.Save(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}

	return u.checkout.initiate(ctx, gw, payment, adapter.Contact{
		Name:  req.DonorName,
		Email: req.DonorEmail,
		Phone: req.DonorPhone,
	}, "donation")
}

func (u *donationUC) Find(ctx context.Context, reference string) (*model.Donation, error) {
	return u.donations.FindByReference(ctx, repository.NoTX, reference)
}
