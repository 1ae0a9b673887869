package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

// TurnPurger deletes chat turns older than a retention period.
type TurnPurger interface {
	CleanupOldTurns(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionWorker periodically purges old chat history.
type RetentionWorker struct {
	interval  time.Duration
	retention time.Duration
	purger    TurnPurger
	log       *zerolog.Logger
}

func NewRetentionWorker(interval, retention time.Duration, purger TurnPurger, logger *zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionWorker{
		interval:  interval,
		retention: retention,
		purger:    purger,
		log:       logging.Component(logger, "RetentionWorker"),
	}
}

// Run sweeps once on startup and then on every tick until ctx is done.
func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("retention", w.retention).Msg("starting retention worker")
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	n, err := w.purger.CleanupOldTurns(ctx, w.retention)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Msg("chat history purge failed")
		}
		return
	}
	metrics.AddTurnsPurged(n)
	if n > 0 {
		w.log.Info().Int64("turns", n).Msg("purged old chat turns")
	}
}
