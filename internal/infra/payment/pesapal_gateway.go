package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"membership-payments/internal/config"
	"membership-payments/internal/domain/ports/adapter"
)

// PesapalGateway implements the PaymentGateway port against the Pesapal v3
// API using direct HTTP calls.
type PesapalGateway struct {
	consumerKey    string
	consumerSecret string
	callbackURL    string
	ipnID          string
	baseURL        string
	client         *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPesapalGateway(cfg config.PesapalConfig) *PesapalGateway {
	baseURL := "https://pay.pesapal.com/v3"
	if cfg.Sandbox {
		baseURL = "https://cybqa.pesapal.com/pesapalv3"
	}
	return &PesapalGateway{
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		callbackURL:    cfg.CallbackURL,
		ipnID:          cfg.IPNID,
		baseURL:        baseURL,
		client:         &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *PesapalGateway) Name() string { return "pesapal" }

type pesapalTokenResponse struct {
	Token      string `json:"token"`
	ExpiryDate string `json:"expiryDate"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type pesapalOrderResponse struct {
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
	Status          string `json:"status"`
	Error           *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type pesapalStatusResponse struct {
	PaymentMethod            string  `json:"payment_method"`
	Amount                   float64 `json:"amount"`
	ConfirmationCode         string  `json:"confirmation_code"`
	PaymentStatusDescription string  `json:"payment_status_description"`
	Description              string  `json:"description"`
	StatusCode               int     `json:"status_code"`
	Currency                 string  `json:"currency"`
}

// authToken returns a cached bearer token, refreshing it when stale.
func (g *PesapalGateway) authToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		return g.token, nil
	}

	body, _ := json.Marshal(map[string]string{
		"consumer_key":    g.consumerKey,
		"consumer_secret": g.consumerSecret,
	})
	var resp pesapalTokenResponse
	if err := g.post(ctx, "/api/Auth/RequestToken", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("pesapal auth failed: %s", resp.Message)
	}
	g.token = resp.Token
	// Pesapal tokens live 5 minutes; refresh a little early.
	g.tokenExpiry = time.Now().Add(4 * time.Minute)
	return g.token, nil
}

func (g *PesapalGateway) Initiate(ctx context.Context, req adapter.InitiateRequest) (adapter.InitiateResult, error) {
	token, err := g.authToken(ctx)
	if err != nil {
		return adapter.InitiateResult{}, err
	}

	names := strings.SplitN(req.Contact.Name, " ", 2)
	first := names[0]
	last := ""
	if len(names) > 1 {
		last = names[1]
	}
	orderReq := map[string]interface{}{
		"id":              req.Reference,
		"currency":        req.Currency,
		"amount":          float64(req.Amount) / 100,
		"description":     req.Description,
		"callback_url":    g.callbackURL,
		"notification_id": g.ipnID,
		"billing_address": map[string]interface{}{
			"email_address": req.Contact.Email,
			"phone_number":  req.Contact.Phone,
			"first_name":    first,
			"last_name":     last,
		},
	}
	body, err := json.Marshal(orderReq)
	if err != nil {
		return adapter.InitiateResult{}, fmt.Errorf("failed to marshal request data: %w", err)
	}

	var resp pesapalOrderResponse
	if err := g.post(ctx, "/api/Transactions/SubmitOrderRequest", token, body, &resp); err != nil {
		return adapter.InitiateResult{}, err
	}
	if resp.Error != nil {
		// Declines are expected outcomes, not errors.
		return adapter.InitiateResult{Success: false, Message: resp.Error.Message}, nil
	}
	if resp.OrderTrackingID == "" {
		return adapter.InitiateResult{Success: false, Message: "gateway returned no tracking id"}, nil
	}
	return adapter.InitiateResult{
		Success:     true,
		TrackingID:  resp.OrderTrackingID,
		RedirectURL: resp.RedirectURL,
	}, nil
}

func (g *PesapalGateway) CheckStatus(ctx context.Context, trackingID string) (adapter.StatusResult, error) {
	token, err := g.authToken(ctx)
	if err != nil {
		return adapter.StatusResult{}, err
	}

	url := fmt.Sprintf("%s/api/Transactions/GetTransactionStatus?orderTrackingId=%s", g.baseURL, trackingID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return adapter.StatusResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return adapter.StatusResult{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return adapter.StatusResult{}, fmt.Errorf("failed to read response body: %w", err)
	}
	var resp pesapalStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return adapter.StatusResult{}, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}

	var rawMap map[string]interface{}
	_ = json.Unmarshal(raw, &rawMap)

	return adapter.StatusResult{
		Status:        mapPesapalStatus(resp.StatusCode),
		TransactionID: resp.ConfirmationCode,
		Method:        resp.PaymentMethod,
		Raw:           rawMap,
	}, nil
}

// Pesapal status_code: 0=INVALID, 1=COMPLETED, 2=FAILED, 3=REVERSED.
func mapPesapalStatus(code int) adapter.GatewayStatus {
	switch code {
	case 1:
		return adapter.GatewayStatusCompleted
	case 2:
		return adapter.GatewayStatusFailed
	case 3:
		return adapter.GatewayStatusCancelled
	default:
		return adapter.GatewayStatusPending
	}
}

func (g *PesapalGateway) post(ctx context.Context, path, token string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(raw))
	}
	return nil
}
