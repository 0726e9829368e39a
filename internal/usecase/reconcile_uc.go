// File: internal/usecase/reconcile_uc.go
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
	"framely/internal/infra/logging"
	"framely/internal/infra/metrics"
)

// Compile-time check
var _ ReconcileUseCase = (*reconcileUC)(nil)

// ReconcileUseCase repairs divergence between ledger truth and campaign
// state, typically caused by a webhook that never arrived.
type ReconcileUseCase interface {
	// FixAll repairs every stuck campaign it can find. Idempotent: campaigns
	// already active never enter the candidate set.
	FixAll(ctx context.Context) (ReconcileResult, error)
	// FixOne applies the same guarded logic to a single campaign.
	FixOne(ctx context.Context, campaignID string) (FixResult, error)
	// CleanupOrphans removes payment records whose campaign no longer exists.
	CleanupOrphans(ctx context.Context) (int, error)
}

type ReconcileResult struct {
	PaidFixed int
	FreeFixed int
	Skipped   int
}

type FixResult struct {
	Fixed  bool
	Reason string
}

type reconcileUC struct {
	campaigns  repository.CampaignRepository
	payments   repository.PaymentRepository
	users      repository.UserRepository
	audit      repository.AuditRepository
	activation ActivationUseCase
	tm         repository.TransactionManager
	chunkSize  int
	met        *metrics.Metrics
	log        *zerolog.Logger
}

func NewReconcileUseCase(
	campaigns repository.CampaignRepository,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	audit repository.AuditRepository,
	activation ActivationUseCase,
	tm repository.TransactionManager,
	chunkSize int,
	met *metrics.Metrics,
	logger *zerolog.Logger,
) *reconcileUC {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{
		campaigns: campaigns, payments: payments, users: users, audit: audit,
		activation: activation, tm: tm, chunkSize: chunkSize, met: met, log: &l,
	}
}

func (uc *reconcileUC) FixAll(ctx context.Context) (ReconcileResult, error) {
	defer logging.TraceDuration(uc.log, "ReconcileUC.FixAll")()

	started := time.Now()
	var res ReconcileResult

	// Paid-path repair: inactive campaigns with a successful payment on the
	// ledger. Candidates that cannot be fixed (blocked owner, vanished user)
	// are remembered so the chunked scan terminates.
	seen := map[string]bool{}
	for {
		batch, err := uc.campaigns.ListStuckPaid(ctx, nil, uc.chunkSize)
		if err != nil {
			return res, err
		}
		progress := false
		for _, c := range batch {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			progress = true
			fixed, reason := uc.fixPaid(ctx, c.ID)
			if fixed {
				res.PaidFixed++
			} else {
				res.Skipped++
				uc.log.Warn().Str("campaign_id", c.ID).Str("reason", reason).Msg("stuck paid campaign skipped")
			}
		}
		if len(batch) < uc.chunkSize || !progress {
			break
		}
	}

	// Free-grant repair: inactive free campaigns whose owner never consumed
	// the grant.
	seen = map[string]bool{}
	for {
		batch, err := uc.campaigns.ListStuckFree(ctx, nil, uc.chunkSize)
		if err != nil {
			return res, err
		}
		progress := false
		for _, c := range batch {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			progress = true
			fixed, reason := uc.fixFree(ctx, c.ID)
			if fixed {
				res.FreeFixed++
			} else {
				res.Skipped++
				uc.log.Warn().Str("campaign_id", c.ID).Str("reason", reason).Msg("stuck free campaign skipped")
			}
		}
		if len(batch) < uc.chunkSize || !progress {
			break
		}
	}

	uc.met.ObserveJob("reconcile", time.Since(started), res.PaidFixed+res.FreeFixed)
	uc.log.Info().
		Int("paid_fixed", res.PaidFixed).
		Int("free_fixed", res.FreeFixed).
		Int("skipped", res.Skipped).
		Msg("reconciliation finished")
	return res, nil
}

func (uc *reconcileUC) FixOne(ctx context.Context, campaignID string) (FixResult, error) {
	c, err := uc.campaigns.FindByID(ctx, nil, campaignID)
	if errors.Is(err, domain.ErrNotFound) {
		return FixResult{Fixed: false, Reason: "campaign not found"}, nil
	}
	if err != nil {
		return FixResult{}, err
	}
	if c.IsActive {
		return FixResult{Fixed: false, Reason: "already active"}, nil
	}

	if _, err := uc.payments.FindSuccessByCampaign(ctx, nil, campaignID); err == nil {
		fixed, reason := uc.fixPaid(ctx, campaignID)
		return FixResult{Fixed: fixed, Reason: reason}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return FixResult{}, err
	}

	if c.PlanType == model.PlanFree {
		u, err := uc.users.FindByID(ctx, nil, c.OwnerUserID)
		if err == nil && !u.FreeCampaignUsed {
			fixed, reason := uc.fixFree(ctx, campaignID)
			return FixResult{Fixed: fixed, Reason: reason}, nil
		}
	}
	return FixResult{Fixed: false, Reason: "no successful payment or unused free grant"}, nil
}

// fixPaid recomputes the activation the lost webhook would have produced,
// with expiry from the repair's now since the original webhook time is
// unrecoverable.
func (uc *reconcileUC) fixPaid(ctx context.Context, campaignID string) (bool, string) {
	var activated bool
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		rec, err := uc.payments.FindSuccessByCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		c, err := uc.activation.ApplyPaymentSuccess(ctx, tx, rec, model.ActorSystem, true)
		if err != nil {
			return err
		}
		activated = c.IsActive
		return nil
	})
	switch {
	case err == nil && activated:
		uc.met.IncRecovery("paid")
		return true, "recovered from successful payment"
	case errors.Is(err, domain.ErrBlockedUser):
		return false, "owner is blocked"
	case errors.Is(err, domain.ErrNotOwner):
		return false, "payment payer does not own campaign"
	case errors.Is(err, domain.ErrNotFound):
		return false, "campaign or payer vanished"
	case err != nil:
		return false, err.Error()
	default:
		return false, "not activated"
	}
}

// fixFree applies the free grant and flips freeCampaignUsed in one batch.
func (uc *reconcileUC) fixFree(ctx context.Context, campaignID string) (bool, string) {
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		_, err := uc.activation.ApplyFreeGrant(ctx, tx, campaignID, model.ActorSystem, true)
		return err
	})
	switch {
	case err == nil:
		uc.met.IncRecovery("free")
		return true, "free grant recovered"
	case errors.Is(err, domain.ErrFreeAlreadyUsed):
		return false, "free grant already consumed"
	case errors.Is(err, domain.ErrBlockedUser):
		return false, "owner is blocked"
	case errors.Is(err, domain.ErrNotFound):
		return false, "campaign or owner vanished"
	default:
		return false, err.Error()
	}
}

// CleanupOrphans deletes payment records that reference a campaign no longer
// in the store. Pure deletion; the state machine is never involved.
func (uc *reconcileUC) CleanupOrphans(ctx context.Context) (int, error) {
	defer logging.TraceDuration(uc.log, "ReconcileUC.CleanupOrphans")()

	started := time.Now()
	removed := 0
	for {
		batch, err := uc.payments.ListOrphaned(ctx, nil, uc.chunkSize)
		if err != nil {
			return removed, err
		}
		if len(batch) == 0 {
			break
		}
		ids := make([]string, 0, len(batch))
		entries := make([]*model.AuditLogEntry, 0, len(batch))
		for _, p := range batch {
			ids = append(ids, p.OrderID)
			entry, err := model.NewAuditLogEntry(model.ActorSystem,
				fmt.Sprintf("orphaned payment %s removed", p.OrderID),
				model.OrphanCleanupMeta{OrderID: p.OrderID, CampaignID: p.CampaignID})
			if err != nil {
				return removed, err
			}
			entries = append(entries, entry)
		}

		var n int64
		err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			n, err = uc.payments.DeleteBatch(ctx, tx, ids)
			if err != nil {
				return err
			}
			return uc.audit.InsertBatch(ctx, tx, entries)
		})
		if err != nil {
			return removed, fmt.Errorf("%w: orphan cleanup", domain.ErrPartialBatch)
		}
		removed += int(n)
		if len(batch) < uc.chunkSize {
			break
		}
	}
	uc.met.ObserveJob("orphan_cleanup", time.Since(started), removed)
	if removed > 0 {
		uc.log.Info().Int("removed", removed).Msg("orphaned payment records removed")
	}
	return removed, nil
}
