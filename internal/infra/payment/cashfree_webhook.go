package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"framely/internal/domain/ports/adapter"
)

// VerifyCashfreeWebhookSignature checks the x-webhook-signature header.
// Per Cashfree documentation: signature = base64(HMAC-SHA256(timestamp + rawBody, secret)).
func VerifyCashfreeWebhookSignature(secret string, timestamp string, rawBody []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp))
	h.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(h.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

type cashfreeWebhookEnvelope struct {
	Type string               `json:"type"`
	Data *cashfreeWebhookBody `json:"data"`

	// Older notification format carries order/payment at the top level.
	cashfreeWebhookBody
}

type cashfreeWebhookBody struct {
	Order struct {
		OrderID     string      `json:"order_id"`
		OrderAmount json.Number `json:"order_amount"`
	} `json:"order"`
	Payment struct {
		CfPaymentID   json.Number     `json:"cf_payment_id"`
		PaymentStatus string          `json:"payment_status"`
		PaymentAmount json.Number     `json:"payment_amount"`
		PaymentTime   json.RawMessage `json:"payment_time"`
	} `json:"payment"`
}

// ParseCashfreeWebhook decodes a payment notification into the
// gateway-neutral shape the ledger consumes.
func ParseCashfreeWebhook(rawBody []byte, receivedAt time.Time) (*adapter.WebhookNotification, error) {
	var env cashfreeWebhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal webhook payload: %w", err)
	}
	body := &env.cashfreeWebhookBody
	if env.Data != nil && env.Data.Order.OrderID != "" {
		body = env.Data
	}
	if body.Order.OrderID == "" {
		return nil, fmt.Errorf("webhook payload missing order_id")
	}

	amount, err := webhookAmount(body.Payment.PaymentAmount, body.Order.OrderAmount)
	if err != nil {
		return nil, err
	}

	n := &adapter.WebhookNotification{
		OrderID:          body.Order.OrderID,
		GatewayPaymentID: body.Payment.CfPaymentID.String(),
		Amount:           amount,
		Succeeded:        strings.EqualFold(body.Payment.PaymentStatus, "SUCCESS"),
		ReceivedAt:       receivedAt.UTC(),
		Raw:              rawBody,
	}
	if ts, ok := parseWebhookTime(body.Payment.PaymentTime); ok {
		n.ReceivedAt = ts
	}
	return n, nil
}

func webhookAmount(paymentAmount, orderAmount json.Number) (int64, error) {
	pick := paymentAmount
	if pick.String() == "" {
		pick = orderAmount
	}
	if pick.String() == "" {
		return 0, fmt.Errorf("webhook payload missing amount")
	}
	f, err := pick.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid webhook amount %q: %w", pick.String(), err)
	}
	return int64(f + 0.5), nil
}

// parseWebhookTime normalizes the gateway's inconsistent timestamp encodings:
// RFC3339 strings, epoch seconds, or epoch milliseconds.
func parseWebhookTime(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), true
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(n), true
		}
		return time.Time{}, false
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return epochToTime(n), true
	}
	return time.Time{}, false
}

func epochToTime(n int64) time.Time {
	// Values past the year ~33658 in seconds are epoch milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
