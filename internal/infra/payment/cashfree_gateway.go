package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"framely/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*CashfreeDirectGateway)(nil)

const cashfreeAPIVersion = "2023-08-01"

// CashfreeDirectGateway implements adapter.PaymentGateway using direct HTTP
// calls against the Cashfree PG order API.
type CashfreeDirectGateway struct {
	appID     string
	secretKey string
	sandbox   bool
	baseURL   string
	client    *http.Client
}

// NewCashfreeDirectGateway creates a new direct Cashfree gateway.
func NewCashfreeDirectGateway(appID, secretKey string, sandbox bool) *CashfreeDirectGateway {
	var baseURL string
	switch sandbox {
	case true:
		baseURL = "https://sandbox.cashfree.com/pg"
	case false:
		baseURL = "https://api.cashfree.com/pg"
	}

	return &CashfreeDirectGateway{
		appID:     appID,
		secretKey: secretKey,
		sandbox:   sandbox,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *CashfreeDirectGateway) Name() string { return "cashfree" }

// cashfreeOrderRequest is the wire shape of POST /orders.
type cashfreeOrderRequest struct {
	OrderID         string                  `json:"order_id"`
	OrderAmount     float64                 `json:"order_amount"`
	OrderCurrency   string                  `json:"order_currency"`
	CustomerDetails cashfreeCustomerDetails `json:"customer_details"`
	OrderMeta       map[string]interface{}  `json:"order_meta,omitempty"`
}

type cashfreeCustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
}

// cashfreeOrderResponse represents the response from the order creation API.
type cashfreeOrderResponse struct {
	CfOrderID        json.Number `json:"cf_order_id"`
	OrderID          string      `json:"order_id"`
	OrderStatus      string      `json:"order_status"`
	PaymentSessionID string      `json:"payment_session_id"`
	Message          string      `json:"message"`
	Code             string      `json:"code"`
	Type             string      `json:"type"`
}

// CreateOrder implements adapter.PaymentGateway.CreateOrder.
func (g *CashfreeDirectGateway) CreateOrder(ctx context.Context, p adapter.CreateOrderParams) (adapter.CreateOrderResult, error) {
	reqBody := cashfreeOrderRequest{
		OrderID:       p.OrderID,
		OrderAmount:   float64(p.Amount),
		OrderCurrency: p.Currency,
		CustomerDetails: cashfreeCustomerDetails{
			CustomerID:    p.CustomerID,
			CustomerEmail: p.CustomerEmail,
		},
	}
	if p.ReturnURL != "" || p.NotifyURL != "" {
		reqBody.OrderMeta = map[string]interface{}{}
		if p.ReturnURL != "" {
			reqBody.OrderMeta["return_url"] = p.ReturnURL
		}
		if p.NotifyURL != "" {
			reqBody.OrderMeta["notify_url"] = p.NotifyURL
		}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return adapter.CreateOrderResult{}, fmt.Errorf("failed to marshal order request: %w", err)
	}

	url := g.baseURL + "/orders"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return adapter.CreateOrderResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("x-client-id", g.appID)
	req.Header.Set("x-client-secret", g.secretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return adapter.CreateOrderResult{}, fmt.Errorf("failed to send order request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.CreateOrderResult{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var response cashfreeOrderResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return adapter.CreateOrderResult{}, fmt.Errorf("failed to unmarshal response: %w, body: %s", err, string(body))
	}

	if resp.StatusCode != http.StatusOK {
		return adapter.CreateOrderResult{}, fmt.Errorf("cashfree error: status %d, code %s, message: %s", resp.StatusCode, response.Code, response.Message)
	}
	if response.PaymentSessionID == "" {
		return adapter.CreateOrderResult{}, fmt.Errorf("cashfree error: missing payment session in response, body: %s", string(body))
	}

	return adapter.CreateOrderResult{
		GatewayOrderID: response.CfOrderID.String(),
		SessionRef:     response.PaymentSessionID,
	}, nil
}
