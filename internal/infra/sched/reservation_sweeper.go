package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"agri-sponsorship/internal/usecase"
)

// ReservationSweeper periodically returns codes held by abandoned
// invitations to the pool.
type ReservationSweeper struct {
	interval time.Duration
	maxAge   time.Duration
	alloc    *usecase.AllocationUseCase
	log      *zerolog.Logger
}

func NewReservationSweeper(interval, maxAge time.Duration, alloc *usecase.AllocationUseCase, logger *zerolog.Logger) *ReservationSweeper {
	l := logger.With().Str("component", "ReservationSweeper").Logger()
	return &ReservationSweeper{interval: interval, maxAge: maxAge, alloc: alloc, log: &l}
}

func (w *ReservationSweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("max_age", w.maxAge).Msg("Starting reservation sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping reservation sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.alloc.ReleaseStale(ctx, w.maxAge)
			if err != nil {
				w.log.Error().Err(err).Msg("reservation sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("stale reservations released")
			}
		}
	}
}
