// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"membership-payments/internal/domain"
	"membership-payments/internal/domain/model"
	"membership-payments/internal/domain/ports/adapter"
	"membership-payments/internal/infra/metrics"
	"membership-payments/internal/usecase"
)

type contactBody struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c contactBody) toContact() adapter.Contact {
	return adapter.Contact{Name: c.Name, Email: c.Email, Phone: c.Phone}
}

// initiationResponse is the common checkout reply: the client stores the
// references and follows the redirect.
type initiationResponse struct {
	PaymentID      string `json:"payment_id"`
	OrderReference string `json:"order_reference"`
	TrackingID     string `json:"tracking_id"`
	RedirectURL    string `json:"redirect_url"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

func toInitiationResponse(res *usecase.InitiationResult) initiationResponse {
	return initiationResponse{
		PaymentID:      res.Payment.ID,
		OrderReference: res.Payment.OrderReference,
		TrackingID:     res.TrackingID,
		RedirectURL:    res.RedirectURL,
		Amount:         res.Payment.Amount,
		Currency:       res.Payment.Currency,
	}
}

// ----- Subscriptions -----

func (s *Server) handleSubscriptionInitiate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string      `json:"user_id"`
		PlanID        string      `json:"plan_id"`
		BillingPeriod string      `json:"billing_period"`
		Gateway       string      `json:"gateway"`
		Contact       contactBody `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	period, err := model.ParseBillingPeriod(req.BillingPeriod)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "billing_period must be monthly or yearly"})
		return
	}

	res, err := s.subUC.Initiate(r.Context(), usecase.InitiateSubscriptionRequest{
		UserID:        req.UserID,
		PlanID:        req.PlanID,
		BillingPeriod: period,
		Gateway:       req.Gateway,
		Contact:       req.Contact.toContact(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInitiationResponse(res))
}

func (s *Server) handleSubscriptionCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "user_id is required"})
		return
	}
	sub, err := s.subUC.Cancel(r.Context(), req.UserID, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"subscription_id": sub.ID,
		"status":          string(sub.Status),
	})
}

// ----- Event orders -----

func (s *Server) handleEventOrderCreate(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	var req struct {
		UserID    string      `json:"user_id"`
		Quantity  int         `json:"quantity"`
		PromoCode string      `json:"promo_code"`
		Gateway   string      `json:"gateway"`
		Contact   contactBody `json:"contact"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	res, err := s.orderUC.CreateOrder(r.Context(), usecase.CreateOrderRequest{
		EventID:   eventID,
		UserID:    req.UserID,
		Quantity:  req.Quantity,
		PromoCode: req.PromoCode,
		Gateway:   req.Gateway,
		Contact:   req.Contact.toContact(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInitiationResponse(res))
}

func (s *Server) handleEventCheckIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRToken string `json:"qr_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QRToken == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "qr_token is required"})
		return
	}
	order, err := s.orderUC.CheckIn(r.Context(), req.QRToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":      order.ID,
		"event_id":      order.EventID,
		"quantity":      order.Quantity,
		"checked_in_at": order.CheckedInAt,
	})
}

// ----- Donations -----

func (s *Server) handleDonationCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CampaignID *string `json:"campaign_id"`
		DonorName  string  `json:"donor_name"`
		DonorEmail string  `json:"donor_email"`
		DonorPhone string  `json:"donor_phone"`
		Amount     int64   `json:"amount"`
		Currency   string  `json:"currency"`
		Gateway    string  `json:"gateway"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	res, err := s.donationUC.Create(r.Context(), usecase.CreateDonationRequest{
		CampaignID: req.CampaignID,
		DonorName:  req.DonorName,
		DonorEmail: req.DonorEmail,
		DonorPhone: req.DonorPhone,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Gateway:    req.Gateway,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInitiationResponse(res))
}

// ----- Payments -----

// handleWebhook acknowledges the gateway immediately and processes the
// notification on the worker pool. Gateways retry on non-2xx, so a full queue
// answers 503 to trigger redelivery.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	n := notificationFromRequest(r)
	if n.TrackingID == "" && n.OrderReference == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing order reference"})
		return
	}

	eventID := uuid.NewString()
	metrics.WebhookQueued()
	err := s.pool.Submit(func(ctx context.Context) error {
		defer metrics.WebhookDequeued()
		if _, err := s.webhookUC.ProcessNotification(ctx, n); err != nil {
			if !domain.IsKind(err, domain.KindNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.WebhookDequeued()
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "busy, retry later"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"event_id": eventID,
	})
}

// notificationFromRequest accepts both Pesapal's query-parameter IPN and a
// JSON body from other integrations.
func notificationFromRequest(r *http.Request) usecase.Notification {
	q := r.URL.Query()
	n := usecase.Notification{
		TrackingID:     q.Get("OrderTrackingId"),
		OrderReference: q.Get("OrderMerchantReference"),
	}
	if n.TrackingID != "" || n.OrderReference != "" {
		return n
	}
	var body struct {
		TrackingID     string `json:"tracking_id"`
		OrderReference string `json:"order_reference"`
		Status         string `json:"status"`
		TransactionID  string `json:"transaction_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		n.TrackingID = body.TrackingID
		n.OrderReference = body.OrderReference
		n.Status = adapter.GatewayStatus(body.Status)
		n.TransactionID = body.TransactionID
	}
	return n
}

// handleCallback is the browser return leg. Strictly read-only: we look up
// the current status and bounce the user to the frontend with the outcome.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("OrderTrackingId")
	if ref == "" {
		ref = r.URL.Query().Get("OrderMerchantReference")
	}
	outcome := "pending"
	if ref != "" {
		if status, err := s.webhookUC.RedirectOutcome(r.Context(), ref); err == nil {
			outcome = redirectParam(status)
		}
	}
	target := s.cfg.Server.FrontendURL + "?payment=" + url.QueryEscape(outcome)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectParam(status model.PaymentStatus) string {
	switch status {
	case model.PaymentStatusPaid:
		return "success"
	case model.PaymentStatusFailed:
		return "failed"
	case model.PaymentStatusCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	info, err := s.paymentUC.Status(r.Context(), ref)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":      info.PaymentID,
		"order_reference": info.OrderReference,
		"payable_kind":    string(info.Payable.Kind),
		"status":          string(info.Status),
		"amount":          info.Amount,
		"currency":        info.Currency,
		"failure_reason":  info.FailureReason,
	})
}

// ----- Testing simulator (non-production only) -----

func (s *Server) handleTestingComplete(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")
	// No forced status: the mock gateway resolves the outcome from the
	// session's phone pattern, exercising the same path as a real callback.
	outcome, err := s.webhookUC.ProcessNotification(r.Context(), usecase.Notification{TrackingID: trackingID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

func (s *Server) handleTestingCancel(w http.ResponseWriter, r *http.Request) {
	trackingID := chi.URLParam(r, "trackingID")
	outcome, err := s.webhookUC.ProcessNotification(r.Context(), usecase.Notification{
		TrackingID: trackingID,
		Status:     adapter.GatewayStatusCancelled,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
}

// ----- Admin -----

func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !s.auth.Bootstrap(req.Secret) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")
	p, err := s.paymentUC.Refund(r.Context(), paymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment_id":  p.ID,
		"status":      string(p.Status),
		"refunded_at": p.RefundedAt,
	})
}
