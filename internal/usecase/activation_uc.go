// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/repository"
	"framely/internal/infra/metrics"
)

// freeGrantDays is the visibility window of the complimentary activation and
// the default window for an admin reactivate without an explicit date.
const freeGrantDays = 30

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase owns every campaign visibility transition. Each transition
// re-reads the campaign under the transaction and writes only when the
// precondition still holds, so racing writers converge instead of clobbering
// each other.
type ActivationUseCase interface {
	// ActivateFree grants the once-per-user complimentary activation.
	ActivateFree(ctx context.Context, campaignID, actorID string) (*model.Campaign, error)
	// ApplyPaymentSuccess performs the payment-success transition inside the
	// caller's transaction. recovered marks repairs applied after the fact.
	ApplyPaymentSuccess(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord, actorID string, recovered bool) (*model.Campaign, error)
	// ApplyFreeGrant performs the free-activation transition inside the
	// caller's transaction, flipping the user's grant flag in the same unit.
	ApplyFreeGrant(ctx context.Context, tx repository.Tx, campaignID, actorID string, recovered bool) (*model.Campaign, error)

	Deactivate(ctx context.Context, campaignID, actorID string) (*model.Campaign, error)
	Reactivate(ctx context.Context, campaignID, actorID string, expiresAt *time.Time) (*model.Campaign, error)
	Extend(ctx context.Context, campaignID, actorID string, days int) (*model.Campaign, error)
	SetExpiry(ctx context.Context, campaignID, actorID string, expiresAt time.Time) (*model.Campaign, error)
	Delete(ctx context.Context, campaignID, actorID string) error
}

type activationUC struct {
	campaigns repository.CampaignRepository
	users     repository.UserRepository
	audit     repository.AuditRepository
	tm        repository.TransactionManager
	met       *metrics.Metrics
	log       *zerolog.Logger
}

func NewActivationUseCase(
	campaigns repository.CampaignRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	tm repository.TransactionManager,
	met *metrics.Metrics,
	logger *zerolog.Logger,
) *activationUC {
	l := logger.With().Str("component", "ActivationUC").Logger()
	return &activationUC{campaigns: campaigns, users: users, audit: audit, tm: tm, met: met, log: &l}
}

func planExpiry(now time.Time, plan model.PlanType) (time.Time, error) {
	days, err := plan.Days()
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(time.Duration(days) * 24 * time.Hour), nil
}

// ApplyPaymentSuccess activates a campaign from a successful ledger record.
// Guards: the campaign still exists, the payer owns it, and the payer is not
// blocked. A campaign already active is a converged no-op.
func (uc *activationUC) ApplyPaymentSuccess(ctx context.Context, tx repository.Tx, rec *model.PaymentRecord, actorID string, recovered bool) (*model.Campaign, error) {
	c, err := uc.campaigns.FindByID(ctx, tx, rec.CampaignID)
	if err != nil {
		return nil, err
	}
	if c.OwnerUserID != rec.PayerUserID {
		return nil, domain.ErrNotOwner
	}
	u, err := uc.users.FindByID(ctx, tx, rec.PayerUserID)
	if err != nil {
		return nil, err
	}
	if u.IsBlocked {
		return nil, domain.ErrBlockedUser
	}
	if c.IsActive {
		// Already in target state: a replayed webhook or a redundant repair.
		return c, nil
	}

	now := time.Now()
	expires, err := planExpiry(now, rec.PlanType)
	if err != nil {
		return nil, err
	}
	c.IsActive = true
	c.Status = model.CampaignStatusActive
	c.IsFreeCampaign = false
	c.PlanType = rec.PlanType
	c.AmountPaid = rec.Amount
	orderID := rec.OrderID
	c.PaymentRef = &orderID
	c.ExpiresAt = &expires
	c.LastPaymentAt = &now
	c.UpdatedAt = now

	ok, err := uc.campaigns.UpdateIfStatus(ctx, tx, c, model.CampaignStatusInactive)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else activated between our read and write; converge.
		return uc.campaigns.FindByID(ctx, tx, c.ID)
	}

	var meta model.AuditMetadata
	desc := fmt.Sprintf("campaign %s activated by payment %s (%s)", c.ID, rec.OrderID, rec.PlanType)
	if recovered {
		meta = model.RecoveryMeta{CampaignID: c.ID, OrderID: rec.OrderID, PlanType: rec.PlanType, Amount: rec.Amount}
		desc = fmt.Sprintf("campaign %s recovered from successful payment %s", c.ID, rec.OrderID)
	} else {
		gw := ""
		if rec.GatewayPaymentID != nil {
			gw = *rec.GatewayPaymentID
		}
		meta = model.PaymentMeta{
			OrderID: rec.OrderID, CampaignID: c.ID, PlanType: rec.PlanType,
			Amount: rec.Amount, GatewayPaymentID: gw, Succeeded: true,
		}
	}
	entry, err := model.NewAuditLogEntry(actorID, desc, meta)
	if err != nil {
		return nil, err
	}
	if err := uc.audit.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	uc.met.IncActivation(string(rec.PlanType), recovered)
	return c, nil
}

// ApplyFreeGrant activates campaignID on the free plan and consumes the
// owner's grant, both under the caller's transaction.
func (uc *activationUC) ApplyFreeGrant(ctx context.Context, tx repository.Tx, campaignID, actorID string, recovered bool) (*model.Campaign, error) {
	c, err := uc.campaigns.FindByID(ctx, tx, campaignID)
	if err != nil {
		return nil, err
	}
	if actorID != model.ActorSystem && actorID != c.OwnerUserID {
		return nil, domain.ErrNotOwner
	}
	if c.IsActive {
		return c, nil
	}
	u, err := uc.users.FindByID(ctx, tx, c.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if u.IsBlocked {
		return nil, domain.ErrBlockedUser
	}
	flipped, err := uc.users.MarkFreeCampaignUsed(ctx, tx, c.OwnerUserID)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, domain.ErrFreeAlreadyUsed
	}

	now := time.Now()
	expires := now.Add(freeGrantDays * 24 * time.Hour)
	c.IsActive = true
	c.Status = model.CampaignStatusActive
	c.IsFreeCampaign = true
	c.PlanType = model.PlanFree
	c.ExpiresAt = &expires
	c.UpdatedAt = now

	ok, err := uc.campaigns.UpdateIfStatus(ctx, tx, c, model.CampaignStatusInactive)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyActive
	}

	entry, err := model.NewAuditLogEntry(actorID,
		fmt.Sprintf("campaign %s activated on free grant for user %s", c.ID, c.OwnerUserID),
		model.FreeActivationMeta{CampaignID: c.ID, UserID: c.OwnerUserID, ExpiresAt: &expires, Recovered: recovered})
	if err != nil {
		return nil, err
	}
	if err := uc.audit.Insert(ctx, tx, entry); err != nil {
		return nil, err
	}
	uc.met.IncActivation(string(model.PlanFree), recovered)
	return c, nil
}

func (uc *activationUC) ActivateFree(ctx context.Context, campaignID, actorID string) (*model.Campaign, error) {
	var out *model.Campaign
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.ApplyFreeGrant(ctx, tx, campaignID, actorID, false)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deactivate is the admin Active -> Inactive transition. The state change
// commits on its own; the audit row is written afterwards best-effort so an
// audit failure cannot undo the transition.
func (uc *activationUC) Deactivate(ctx context.Context, campaignID, actorID string) (*model.Campaign, error) {
	var c *model.Campaign
	var wasActive bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = uc.campaigns.FindByID(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return domain.ErrAlreadyInactive
		}
		wasActive = c.IsActive
		c.IsActive = false
		c.Status = model.CampaignStatusInactive
		c.UpdatedAt = time.Now()
		ok, err := uc.campaigns.UpdateIfStatus(ctx, tx, c, model.CampaignStatusActive)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyInactive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.auditBestEffort(ctx, actorID,
		fmt.Sprintf("campaign %s deactivated by %s", campaignID, actorID),
		model.AdminActionMeta{Event: model.EventAdminDeactivate, CampaignID: campaignID, WasActive: wasActive, NowActive: false})
	return c, nil
}

func (uc *activationUC) Reactivate(ctx context.Context, campaignID, actorID string, expiresAt *time.Time) (*model.Campaign, error) {
	var c *model.Campaign
	var prevExpiry *time.Time
	var wasActive bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = uc.campaigns.FindByID(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		prevExpiry = c.ExpiresAt
		wasActive = c.IsActive
		expires := time.Now().Add(freeGrantDays * 24 * time.Hour)
		if expiresAt != nil {
			expires = *expiresAt
		}
		c.IsActive = true
		c.Status = model.CampaignStatusActive
		c.ExpiresAt = &expires
		c.UpdatedAt = time.Now()
		return uc.campaigns.Save(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	uc.auditBestEffort(ctx, actorID,
		fmt.Sprintf("campaign %s reactivated by %s", campaignID, actorID),
		model.AdminActionMeta{Event: model.EventAdminReactivate, CampaignID: campaignID,
			WasActive: wasActive, NowActive: true, PrevExpiresAt: prevExpiry, NewExpiresAt: c.ExpiresAt})
	return c, nil
}

// Extend adds days to the current expiry rather than restarting from now, so
// remaining paid time is preserved. A nil expiry starts the clock at now.
func (uc *activationUC) Extend(ctx context.Context, campaignID, actorID string, days int) (*model.Campaign, error) {
	if days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	var c *model.Campaign
	var prevExpiry *time.Time
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = uc.campaigns.FindByID(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		prevExpiry = c.ExpiresAt
		base := time.Now()
		if c.ExpiresAt != nil {
			base = *c.ExpiresAt
		}
		expires := base.Add(time.Duration(days) * 24 * time.Hour)
		c.ExpiresAt = &expires
		c.UpdatedAt = time.Now()
		return uc.campaigns.Save(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	uc.auditBestEffort(ctx, actorID,
		fmt.Sprintf("campaign %s extended %d days by %s", campaignID, days, actorID),
		model.AdminActionMeta{Event: model.EventAdminExtend, CampaignID: campaignID,
			WasActive: c.IsActive, NowActive: c.IsActive, PrevExpiresAt: prevExpiry,
			NewExpiresAt: c.ExpiresAt, ExtensionDays: days})
	return c, nil
}

func (uc *activationUC) SetExpiry(ctx context.Context, campaignID, actorID string, expiresAt time.Time) (*model.Campaign, error) {
	var c *model.Campaign
	var prevExpiry *time.Time
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		c, err = uc.campaigns.FindByID(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		prevExpiry = c.ExpiresAt
		c.ExpiresAt = &expiresAt
		c.UpdatedAt = time.Now()
		return uc.campaigns.Save(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}
	uc.auditBestEffort(ctx, actorID,
		fmt.Sprintf("campaign %s expiry set by %s", campaignID, actorID),
		model.AdminActionMeta{Event: model.EventAdminSetExpiry, CampaignID: campaignID,
			WasActive: c.IsActive, NowActive: c.IsActive, PrevExpiresAt: prevExpiry, NewExpiresAt: &expiresAt})
	return c, nil
}

// Delete removes the campaign document. Payment records are financial history
// and are left in place; orphan cleanup handles them separately if needed.
func (uc *activationUC) Delete(ctx context.Context, campaignID, actorID string) error {
	var wasActive bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		c, err := uc.campaigns.FindByID(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		wasActive = c.IsActive
		return uc.campaigns.Delete(ctx, tx, campaignID)
	})
	if err != nil {
		return err
	}
	uc.auditBestEffort(ctx, actorID,
		fmt.Sprintf("campaign %s deleted by %s", campaignID, actorID),
		model.AdminActionMeta{Event: model.EventAdminDelete, CampaignID: campaignID, WasActive: wasActive, NowActive: false})
	return nil
}

// auditBestEffort writes the entry outside any transaction. Failures are
// logged server-side only; the state change already committed.
func (uc *activationUC) auditBestEffort(ctx context.Context, actorID, desc string, meta model.AuditMetadata) {
	entry, err := model.NewAuditLogEntry(actorID, desc, meta)
	if err != nil {
		uc.log.Error().Err(err).Str("actor", actorID).Msg("audit entry construction failed")
		return
	}
	if err := uc.audit.Insert(ctx, nil, entry); err != nil && !errors.Is(err, context.Canceled) {
		uc.log.Error().Err(err).
			Str("event", string(entry.EventType)).
			Str("actor", actorID).
			Msg("audit write failed after state change committed")
	}
}
