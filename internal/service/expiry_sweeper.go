package service

import (
	"context"
	"sync"
	"time"

	"github.com/MSSkowron/MicroURL/internal/config"
	"github.com/MSSkowron/MicroURL/pkg/logger"
)

// Sweeper deletes expired micros.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// ExpirySweeper periodically removes expired micros from the registry.
type ExpirySweeper struct {
	sweeper  Sweeper
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExpirySweeper creates a new ExpirySweeper ticking every interval.
func NewExpirySweeper(sweeper Sweeper, interval time.Duration) (*ExpirySweeper, error) {
	if interval <= 0 {
		return nil, &config.ConfigurationError{Setting: "SWEEP_INTERVAL", Reason: "must be positive"}
	}

	return &ExpirySweeper{
		sweeper:  sweeper,
		interval: interval,
	}, nil
}

// Tick performs a single sweep. Failures are logged and returned.
func (s *ExpirySweeper) Tick(ctx context.Context) (int64, error) {
	deleted, err := s.sweeper.Sweep(ctx)
	if err != nil {
		logger.Error("Failed to sweep expired micros", "error", err)
		return 0, err
	}

	logger.Info("Swept expired micros", "deleted", deleted)
	return deleted, nil
}

// Run sweeps every interval until ctx is done.
func (s *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Expiry sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Expiry sweeper stopped")
			return nil
		case <-ticker.C:
			_, _ = s.Tick(ctx)
		}
	}
}

// Start runs the sweeper in a background goroutine. Calling Start on a running sweeper does nothing.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		_ = s.Run(ctx)
	}(s.done)
}

// Stop cancels a sweeper started with Start and waits for it to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	<-s.done

	s.cancel = nil
	s.done = nil
}
