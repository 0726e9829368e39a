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

const sweepLockKey = "jobs:expiry_sweep"

// SweepWorker periodically deactivates expired campaigns via the use case.
// A redis lock keeps the sweep single-flight across replicas.
type SweepWorker struct {
	interval time.Duration
	sweep    usecase.SweepUseCase
	locker   redis.Locker
	log      *zerolog.Logger
}

func NewSweepWorker(interval time.Duration, sweep usecase.SweepUseCase, locker redis.Locker, logger *zerolog.Logger) *SweepWorker {
	compLog := logger.With().Str("component", "SweepWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &SweepWorker{
		interval: interval,
		sweep:    sweep,
		locker:   locker,
		log:      &compLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting sweep worker")
	// Run once on startup, then on every tick
	w.runSweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *SweepWorker) runSweep(ctx context.Context) {
	token, err := w.locker.TryLock(ctx, sweepLockKey, w.interval)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			w.log.Debug().Msg("sweep already running elsewhere")
			return
		}
		w.log.Error().Err(err).Msg("sweep lock error")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, sweepLockKey, token); err != nil {
			w.log.Warn().Err(err).Msg("sweep unlock failed")
		}
	}()

	res, err := w.sweep.Run(ctx, time.Now().UTC())
	if err != nil {
		w.log.Error().Err(err).Int("deactivated", res.Deactivated).Msg("sweep error")
		return
	}
	if res.Deactivated > 0 {
		w.log.Info().Int("deactivated", res.Deactivated).Int("chunks", res.Chunks).Msg("expired campaigns deactivated")
	}
}
