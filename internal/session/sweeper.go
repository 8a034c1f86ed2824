package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quiz-widget/internal/metrics"
)

// Sweeper periodically evicts sessions whose view has gone idle.
type Sweeper struct {
	store    Expirer
	metrics  *metrics.Recorder
	logger   zerolog.Logger
	interval time.Duration
	idleTTL  time.Duration
	now      func() time.Time
}

func NewSweeper(store Expirer, rec *metrics.Recorder, interval, idleTTL time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Sweeper{
		store:    store,
		metrics:  rec,
		logger:   logger.With().Str("component", "session_sweeper").Logger(),
		interval: interval,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Run blocks until context cancellation.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Sweeper) tick(ctx context.Context) {
	expired, err := w.store.Expire(ctx, w.now().UTC().Add(-w.idleTTL))
	if err != nil {
		w.logger.Warn().Err(err).Msg("session sweep failed")
		return
	}
	for range expired {
		w.metrics.SessionEnded("expired")
	}
	if len(expired) > 0 {
		w.logger.Info().Int("expired", len(expired)).Msg("idle sessions evicted")
	}
}
