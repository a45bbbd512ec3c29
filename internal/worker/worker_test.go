package worker_test

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmartin/sif/internal/worker"
)

type recordingDeleter struct {
	calls  atomic.Int64
	cutoff atomic.Value
}

func (d *recordingDeleter) DeleteAbandonedGuestCarts(_ context.Context, cutoff time.Time) (int64, error) {
	d.calls.Add(1)
	d.cutoff.Store(cutoff)
	return 2, nil
}

func TestCartSweeper_SweepsOnInterval(t *testing.T) {
	deleter := &recordingDeleter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sweeper := worker.NewCartSweeper(deleter, worker.CartSweeperConfig{
		Interval:  5 * time.Millisecond,
		Retention: 24 * time.Hour,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	require.Eventually(t, func() bool {
		return deleter.calls.Load() >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}

	// The cutoff trails now by the retention window.
	cutoff := deleter.cutoff.Load().(time.Time)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), cutoff, time.Minute)
}
