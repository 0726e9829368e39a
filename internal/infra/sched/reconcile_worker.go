package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"framely/internal/domain"
	"framely/internal/infra/redis"
	"framely/internal/usecase"
)

const reconcileLockKey = "jobs:reconcile"

// ReconcileWorker periodically repairs campaigns the webhook path missed.
// This covers cases where the notification never arrived or the process
// crashed between the ledger write and the activation.
type ReconcileWorker struct {
	interval  time.Duration
	reconcile usecase.ReconcileUseCase
	locker    redis.Locker
	log       *zerolog.Logger
}

func NewReconcileWorker(interval time.Duration, reconcile usecase.ReconcileUseCase, locker redis.Locker, logger *zerolog.Logger) *ReconcileWorker {
	compLog := logger.With().Str("component", "ReconcileWorker").Logger()
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &ReconcileWorker{
		interval:  interval,
		reconcile: reconcile,
		locker:    locker,
		log:       &compLog,
	}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting reconcile worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reconcile worker")
			return ctx.Err()
		case <-ticker.C:
			w.runReconcile(ctx)
		}
	}
}

func (w *ReconcileWorker) runReconcile(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, reconcileLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Debug().Msg("reconcile already running elsewhere")
			return
		}
		w.log.Error().Err(err).Msg("reconcile lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, reconcileLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("reconcile unlock failed")
		}
	}()

	res, err := w.reconcile.FixAll(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile error")
	}
	if res.PaidFixed > 0 || res.FreeFixed > 0 {
		w.log.Info().Int("paid_fixed", res.PaidFixed).Int("free_fixed", res.FreeFixed).Msg("stuck campaigns repaired")
	}
}
