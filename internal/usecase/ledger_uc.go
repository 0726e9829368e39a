// File: internal/usecase/ledger_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/adapter"
	"framely/internal/domain/ports/repository"
	"framely/internal/infra/logging"
	"framely/internal/infra/metrics"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase owns the payment-attempt ledger: one record per order id,
// monotone pending -> success|failed.
type LedgerUseCase interface {
	// CreateOrder opens an order on the gateway and inserts the pending
	// ledger record. Returns the record and the checkout session reference.
	CreateOrder(ctx context.Context, campaignID, payerUserID string, plan model.PlanType) (*model.PaymentRecord, string, error)

	// ApplyWebhook applies a gateway outcome notification. Replays and
	// unknown orders are absorbed without error so the gateway is never told
	// to retry something it cannot make succeed.
	ApplyWebhook(ctx context.Context, n adapter.WebhookNotification) error
}

type ledgerUC struct {
	payments   repository.PaymentRepository
	campaigns  repository.CampaignRepository
	users      repository.UserRepository
	audit      repository.AuditRepository
	gateway    adapter.PaymentGateway
	activation ActivationUseCase
	tm         repository.TransactionManager
	met        *metrics.Metrics
	log        *zerolog.Logger

	returnURL string
	notifyURL string
	entropy   ulid.MonotonicReader
}

func NewLedgerUseCase(
	payments repository.PaymentRepository,
	campaigns repository.CampaignRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	gateway adapter.PaymentGateway,
	activation ActivationUseCase,
	tm repository.TransactionManager,
	met *metrics.Metrics,
	logger *zerolog.Logger,
	returnURL, notifyURL string,
) *ledgerUC {
	l := logger.With().Str("component", "LedgerUC").Logger()
	return &ledgerUC{
		payments: payments, campaigns: campaigns, users: users, audit: audit,
		gateway: gateway, activation: activation, tm: tm, met: met, log: &l,
		returnURL: returnURL, notifyURL: notifyURL,
		// Order ids are minted from concurrent requests; the plain
		// monotonic reader is not safe for that.
		entropy: &ulid.LockedMonotonicReader{
			MonotonicReader: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		},
	}
}

// newOrderID mints a sortable, globally unique order id; it doubles as the
// ledger's idempotency key.
func (uc *ledgerUC) newOrderID() string {
	return "ord_" + ulid.MustNew(ulid.Timestamp(time.Now()), uc.entropy).String()
}

func (uc *ledgerUC) CreateOrder(ctx context.Context, campaignID, payerUserID string, plan model.PlanType) (*model.PaymentRecord, string, error) {
	defer logging.TraceDuration(uc.log, "LedgerUC.CreateOrder")()

	if campaignID == "" || payerUserID == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	amount, err := plan.PriceINR()
	if err != nil {
		return nil, "", err
	}
	c, err := uc.campaigns.FindByID(ctx, nil, campaignID)
	if err != nil {
		return nil, "", err
	}
	if c.OwnerUserID != payerUserID {
		return nil, "", domain.ErrNotOwner
	}
	u, err := uc.users.FindByID(ctx, nil, payerUserID)
	if err != nil {
		return nil, "", err
	}
	if u.IsBlocked {
		return nil, "", domain.ErrBlockedUser
	}

	orderID := uc.newOrderID()
	rec, err := model.NewPendingRecord(orderID, campaignID, payerUserID, plan, amount)
	if err != nil {
		return nil, "", err
	}

	res, err := uc.gateway.CreateOrder(ctx, adapter.CreateOrderParams{
		OrderID:       orderID,
		Amount:        amount,
		Currency:      rec.Currency,
		CustomerID:    payerUserID,
		CustomerEmail: u.Email,
		ReturnURL:     uc.returnURL,
		NotifyURL:     uc.notifyURL,
	})
	if err != nil {
		// Full detail stays server-side; callers get the generic sentinel.
		uc.log.Error().Err(err).
			Str("order_id", orderID).
			Str("campaign_id", campaignID).
			Str("gateway", uc.gateway.Name()).
			Msg("gateway order creation failed")
		return nil, "", fmt.Errorf("%w: %s", domain.ErrGateway, uc.gateway.Name())
	}
	rec.GatewayOrderID = res.GatewayOrderID

	if err := uc.payments.Insert(ctx, nil, rec); err != nil {
		return nil, "", err
	}
	uc.met.IncPayment(string(model.PaymentStatusPending))
	uc.log.Info().
		Str("order_id", orderID).
		Str("campaign_id", campaignID).
		Str("plan", string(plan)).
		Int64("amount", amount).
		Msg("pending payment record created")
	return rec, res.SessionRef, nil
}

// ApplyWebhook is idempotent by construction: a record already terminal is
// detected before any side effect runs, and an unknown order mutates nothing.
func (uc *ledgerUC) ApplyWebhook(ctx context.Context, n adapter.WebhookNotification) error {
	defer logging.TraceDuration(uc.log, "LedgerUC.ApplyWebhook")()

	if n.OrderID == "" {
		return domain.ErrInvalidArgument
	}
	rec, err := uc.payments.FindByOrderID(ctx, nil, n.OrderID)
	if errors.Is(err, domain.ErrNotFound) {
		uc.orphanWebhook(ctx, n)
		return nil
	}
	if err != nil {
		return err
	}

	if rec.Status.Terminal() {
		uc.duplicateWebhook(ctx, rec, n)
		return nil
	}

	status := model.PaymentStatusFailed
	if n.Succeeded {
		status = model.PaymentStatusSuccess
	}
	receivedAt := n.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	now := time.Now()

	var raced bool
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var gwPaymentID *string
		if n.GatewayPaymentID != "" {
			id := n.GatewayPaymentID
			gwPaymentID = &id
		}
		ok, err := uc.payments.MarkTerminalIfPending(ctx, tx, rec.OrderID, status, gwPaymentID, now, receivedAt, n.Raw)
		if err != nil {
			return err
		}
		if !ok {
			// A concurrent delivery won the race; nothing left to do.
			raced = true
			return nil
		}
		rec.Status = status
		rec.GatewayPaymentID = gwPaymentID
		rec.CompletedAt = &now
		rec.WebhookReceivedAt = &receivedAt

		if status == model.PaymentStatusSuccess {
			if _, err := uc.activation.ApplyPaymentSuccess(ctx, tx, rec, model.ActorSystem, false); err != nil {
				// A vanished campaign or blocked owner must not bounce the
				// webhook forever; the ledger stays truthful and recovery or
				// cleanup deals with the rest.
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrBlockedUser) || errors.Is(err, domain.ErrNotOwner) {
					uc.log.Warn().Err(err).
						Str("order_id", rec.OrderID).
						Str("campaign_id", rec.CampaignID).
						Msg("payment succeeded but activation skipped")
					return nil
				}
				return err
			}
			return nil
		}

		entry, err := model.NewAuditLogEntry(model.ActorSystem,
			fmt.Sprintf("payment %s failed at gateway", rec.OrderID),
			model.PaymentMeta{OrderID: rec.OrderID, CampaignID: rec.CampaignID,
				PlanType: rec.PlanType, Amount: rec.Amount, GatewayPaymentID: n.GatewayPaymentID})
		if err != nil {
			return err
		}
		return uc.audit.Insert(ctx, tx, entry)
	})
	if err != nil {
		return err
	}
	if raced {
		// The winning delivery already accounted for the transition; this
		// one is a replay for accounting purposes.
		uc.met.IncWebhook("duplicate")
		uc.log.Debug().Str("order_id", rec.OrderID).Msg("webhook lost terminal race, treated as replay")
		return nil
	}

	uc.met.IncPayment(string(status))
	uc.met.IncWebhook("applied")
	uc.log.Info().
		Str("order_id", rec.OrderID).
		Str("status", string(status)).
		Msg("webhook applied")
	return nil
}

// orphanWebhook records a well-formed notification for an order the ledger
// has never seen. The gateway issued the id, so this is an anomaly to surface
// to operators, not an error to hand back.
func (uc *ledgerUC) orphanWebhook(ctx context.Context, n adapter.WebhookNotification) {
	uc.met.IncWebhook("orphan")
	uc.log.Warn().
		Str("order_id", n.OrderID).
		Str("gateway_payment_id", n.GatewayPaymentID).
		Msg("webhook for unknown order")
	entry, err := model.NewAuditLogEntry(model.ActorSystem,
		fmt.Sprintf("webhook received for unknown order %s", n.OrderID),
		model.WebhookAnomalyMeta{Event: model.EventWebhookOrphan, OrderID: n.OrderID, GatewayPaymentID: n.GatewayPaymentID})
	if err != nil {
		return
	}
	if err := uc.audit.Insert(ctx, nil, entry); err != nil {
		uc.log.Error().Err(err).Str("order_id", n.OrderID).Msg("orphan webhook audit write failed")
	}
}

// duplicateWebhook absorbs a replay of an already-terminal record. A replay
// carrying a different gateway payment id for the same order is still a no-op
// on state but is flagged loudly, since the order id is the idempotency key.
func (uc *ledgerUC) duplicateWebhook(ctx context.Context, rec *model.PaymentRecord, n adapter.WebhookNotification) {
	divergent := n.GatewayPaymentID != "" && rec.GatewayPaymentID != nil && *rec.GatewayPaymentID != n.GatewayPaymentID
	if !divergent {
		uc.met.IncWebhook("duplicate")
		uc.log.Debug().Str("order_id", rec.OrderID).Msg("webhook replay for terminal record")
		return
	}
	uc.met.IncWebhook("divergent")
	uc.log.Warn().
		Str("order_id", rec.OrderID).
		Str("stored_payment_id", *rec.GatewayPaymentID).
		Str("replay_payment_id", n.GatewayPaymentID).
		Msg("webhook replay carries a different gateway payment id")
	entry, err := model.NewAuditLogEntry(model.ActorSystem,
		fmt.Sprintf("divergent webhook replay for order %s", rec.OrderID),
		model.WebhookAnomalyMeta{Event: model.EventWebhookDivergent, OrderID: rec.OrderID,
			GatewayPaymentID: n.GatewayPaymentID,
			Detail:           fmt.Sprintf("stored=%s replay=%s", *rec.GatewayPaymentID, n.GatewayPaymentID)})
	if err != nil {
		return
	}
	if err := uc.audit.Insert(ctx, nil, entry); err != nil {
		uc.log.Error().Err(err).Str("order_id", rec.OrderID).Msg("divergent webhook audit write failed")
	}
}
