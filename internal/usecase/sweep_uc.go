// File: internal/usecase/sweep_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/domain/model"
	"framely/internal/domain/ports/repository"
	"framely/internal/infra/logging"
	"framely/internal/infra/metrics"
)

// Compile-time check
var _ SweepUseCase = (*sweepUC)(nil)

// SweepUseCase deactivates campaigns whose expiry has passed. It is the only
// writer that turns isActive false on the clock's authority.
type SweepUseCase interface {
	Run(ctx context.Context, now time.Time) (SweepResult, error)
}

type SweepResult struct {
	Deactivated int
	Chunks      int
}

type sweepUC struct {
	campaigns repository.CampaignRepository
	audit     repository.AuditRepository
	tm        repository.TransactionManager
	chunkSize int
	met       *metrics.Metrics
	log       *zerolog.Logger
}

func NewSweepUseCase(
	campaigns repository.CampaignRepository,
	audit repository.AuditRepository,
	tm repository.TransactionManager,
	chunkSize int,
	met *metrics.Metrics,
	logger *zerolog.Logger,
) *sweepUC {
	if chunkSize <= 0 {
		chunkSize = 400
	}
	l := logger.With().Str("component", "SweepUC").Logger()
	return &sweepUC{campaigns: campaigns, audit: audit, tm: tm, chunkSize: chunkSize, met: met, log: &l}
}

// Run selects active campaigns with expires_at < now and flips them inactive
// in independently committed chunks. The candidate filter excludes inactive
// rows, so a re-run right after a completed run selects nothing; a chunk
// failure leaves prior chunks durable and stops the run.
func (uc *sweepUC) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	defer logging.TraceDuration(uc.log, "SweepUC.Run")()

	started := time.Now()
	var res SweepResult
	for {
		batch, err := uc.campaigns.ListExpired(ctx, nil, now, uc.chunkSize)
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			break
		}

		batchID := uuid.NewString()
		ids := make([]string, 0, len(batch))
		entries := make([]*model.AuditLogEntry, 0, len(batch))
		for _, c := range batch {
			ids = append(ids, c.ID)
			entry, err := model.NewAuditLogEntry(model.ActorSystem,
				fmt.Sprintf("campaign %s expired", c.ID),
				model.ExpiryMeta{CampaignID: c.ID, OwnerUserID: c.OwnerUserID,
					PlanType: c.PlanType, PrevExpiresAt: c.ExpiresAt})
			if err != nil {
				return res, err
			}
			entries = append(entries, entry)
		}

		var flipped int64
		err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			var err error
			flipped, err = uc.campaigns.DeactivateBatch(ctx, tx, ids)
			if err != nil {
				return err
			}
			return uc.audit.InsertBatch(ctx, tx, entries)
		})
		if err != nil {
			uc.log.Error().Err(err).
				Str("batch_id", batchID).
				Int("batch_size", len(ids)).
				Int("committed_before", res.Deactivated).
				Msg("sweep chunk failed; prior chunks stand")
			return res, fmt.Errorf("%w: batch %s", domain.ErrPartialBatch, batchID)
		}
		res.Deactivated += int(flipped)
		res.Chunks++

		if len(batch) < uc.chunkSize {
			break
		}
	}

	uc.met.ObserveJob("expiry_sweep", time.Since(started), res.Deactivated)
	if res.Deactivated > 0 {
		uc.log.Info().Int("deactivated", res.Deactivated).Int("chunks", res.Chunks).Msg("expiry sweep finished")
	}
	return res, nil
}
