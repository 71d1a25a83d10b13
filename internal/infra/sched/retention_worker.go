package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pruner is the slice of the analysis use case the retention worker needs.
type Pruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RetentionWorker periodically deletes finished job records older than the
// retention window.
type RetentionWorker struct {
	interval  time.Duration
	retention time.Duration
	pruner    Pruner
	log       *zerolog.Logger
}

func NewRetentionWorker(interval, retention time.Duration, pruner Pruner, logger *zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval:  interval,
		retention: retention,
		pruner:    pruner,
		log:       &l,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("retention", w.retention).Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RetentionWorker) tick(ctx context.Context) {
	n, err := w.pruner.Prune(ctx, w.retention)
	if err != nil {
		w.log.Error().Err(err).Msg("retention worker error")
		return
	}
	if n > 0 {
		w.log.Info().Int64("count", n).Msg("old analysis jobs deleted")
	}
}
