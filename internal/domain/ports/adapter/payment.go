package adapter

import (
	"context"
	"time"
)

// CreateOrderParams carries everything the gateway needs to open an order.
type CreateOrderParams struct {
	OrderID       string
	Amount        int64
	Currency      string
	CustomerID    string
	CustomerEmail string
	ReturnURL     string
	NotifyURL     string
}

type CreateOrderResult struct {
	GatewayOrderID string
	SessionRef     string // opaque checkout session reference for the client
}

// PaymentGateway creates orders on the external provider. The final outcome
// arrives later as an at-least-once webhook, decoded into a
// WebhookNotification at the adapter boundary.
type PaymentGateway interface {
	Name() string
	CreateOrder(ctx context.Context, p CreateOrderParams) (CreateOrderResult, error)
}

// WebhookNotification is the normalized form of an inbound gateway webhook.
// Timestamps are already canonical time.Time; whatever heterogeneous shape
// the gateway sent lives only in Raw.
type WebhookNotification struct {
	OrderID          string
	GatewayPaymentID string
	Amount           int64
	Succeeded        bool
	ReceivedAt       time.Time
	Raw              []byte
}
