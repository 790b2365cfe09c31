package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MSSkowron/MicroURL/internal/config"
)

type countingSweeper struct {
	calls   atomic.Int64
	deleted int64
	err     error
}

func (c *countingSweeper) Sweep(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return c.deleted, c.err
}

func TestNewExpirySweeperInvalidInterval(t *testing.T) {
	_, err := NewExpirySweeper(&countingSweeper{}, 0)

	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "Expected a configuration error")
	require.Equal(t, "SWEEP_INTERVAL", cfgErr.Setting)
}

func TestExpirySweeperTick(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		sweeper, err := NewExpirySweeper(&countingSweeper{deleted: 4}, time.Hour)
		require.NoError(t, err)

		deleted, err := sweeper.Tick(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(4), deleted)
	})

	t.Run("Failure", func(t *testing.T) {
		sweeper, err := NewExpirySweeper(&countingSweeper{err: ErrStoreUnavailable}, time.Hour)
		require.NoError(t, err)

		_, err = sweeper.Tick(context.Background())
		require.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestExpirySweeperStartStop(t *testing.T) {
	target := &countingSweeper{err: ErrStoreUnavailable}
	sweeper, err := NewExpirySweeper(target, 5*time.Millisecond)
	require.NoError(t, err)

	sweeper.Start(context.Background())
	sweeper.Start(context.Background())

	require.Eventually(t, func() bool { return target.calls.Load() >= 3 }, time.Second, time.Millisecond,
		"Sweeper should keep ticking after failures")

	sweeper.Stop()
	stopped := target.calls.Load()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, stopped, target.calls.Load(), "Sweeper should not tick after Stop")

	sweeper.Stop()
}

func TestExpirySweeperRunReturnsOnCancel(t *testing.T) {
	sweeper, err := NewExpirySweeper(&countingSweeper{}, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
