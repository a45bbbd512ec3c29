package worker

import (
	"context"
	"log/slog"
	"time"
)

// CartSweeperConfig holds the sweep schedule.
type CartSweeperConfig struct {
	// Interval is how often to run a sweep.
	Interval time.Duration

	// Retention is how long an untouched guest cart survives.
	Retention time.Duration
}

// AbandonedCartDeleter deletes guest carts untouched since the cutoff and
// reports how many rows went away. User-bound carts are never deleted.
type AbandonedCartDeleter interface {
	DeleteAbandonedGuestCarts(ctx context.Context, cutoff time.Time) (int64, error)
}

// CartSweeper periodically deletes abandoned guest carts. Guest sessions are
// throwaway; their carts accumulate forever unless something reaps them.
type CartSweeper struct {
	config CartSweeperConfig
	store  AbandonedCartDeleter
	logger *slog.Logger
}

// NewCartSweeper creates a sweeper with defaults of an hourly sweep and a
// 30-day retention window.
func NewCartSweeper(store AbandonedCartDeleter, config CartSweeperConfig, logger *slog.Logger) *CartSweeper {
	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.Retention == 0 {
		config.Retention = 30 * 24 * time.Hour
	}

	return &CartSweeper{
		config: config,
		store:  store,
		logger: logger,
	}
}

// Start runs sweeps until the context is cancelled. The first sweep happens
// after one full interval so startup is not serialized behind a delete.
func (s *CartSweeper) Start(ctx context.Context) error {
	s.logger.Info("cart sweeper starting",
		"interval", s.config.Interval,
		"retention", s.config.Retention,
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cart sweeper shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *CartSweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.config.Retention)

	deleted, err := s.store.DeleteAbandonedGuestCarts(ctx, cutoff)
	if err != nil {
		s.logger.Error("cart sweep failed", "error", err)
		return
	}

	if deleted > 0 {
		s.logger.Info("swept abandoned guest carts", "deleted", deleted, "cutoff", cutoff)
	}
}
