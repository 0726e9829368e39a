package model

import (
	"time"

	"framely/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // order created on gateway side; awaiting webhook
	PaymentStatusSuccess PaymentStatus = "success" // terminal
	PaymentStatusFailed  PaymentStatus = "failed"  // terminal
)

// Terminal reports whether the status can never change again. The ledger is
// monotone: pending -> success|failed, never back.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

// PaymentRecord is one payment attempt for a campaign's visibility plan.
// OrderID is the gateway-facing idempotency key: exactly one record per order.
type PaymentRecord struct {
	OrderID           string
	CampaignID        string
	PayerUserID       string
	PlanType          PlanType
	Amount            int64
	Currency          string
	Status            PaymentStatus
	GatewayOrderID    string
	GatewayPaymentID  *string
	CreatedAt         time.Time
	CompletedAt       *time.Time
	WebhookReceivedAt *time.Time
	RawWebhookPayload []byte // stored verbatim for audit/debugging
}

// NewPendingRecord validates and constructs a pending ledger entry.
func NewPendingRecord(orderID, campaignID, payerUserID string, plan PlanType, amount int64) (*PaymentRecord, error) {
	if orderID == "" || campaignID == "" || payerUserID == "" || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if !plan.Paid() {
		return nil, domain.ErrNotPaidPlan
	}
	return &PaymentRecord{
		OrderID:     orderID,
		CampaignID:  campaignID,
		PayerUserID: payerUserID,
		PlanType:    plan,
		Amount:      amount,
		Currency:    "INR",
		Status:      PaymentStatusPending,
		CreatedAt:   time.Now(),
	}, nil
}
