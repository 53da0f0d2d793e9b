package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is the default delay between Process cycles.
const DefaultInterval = time.Second

// Runner drives an Engine on a fixed interval.
type Runner struct {
	engine   *Engine
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	lastErr error
}

// NewRunner creates a Runner. A non-positive interval selects DefaultInterval.
func NewRunner(engine *Engine, interval time.Duration, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{engine: engine, interval: interval, logger: logger}
}

// Run initializes the installed filters, then processes the store every
// interval until ctx is cancelled. Process errors are logged and do not stop
// the loop. Filters are destroyed before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.engine.Init(ctx); err != nil {
		return err
	}
	defer r.engine.Destroy()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			passes, err := r.engine.Process(ctx)
			if ctx.Err() != nil {
				return nil
			}
			r.setLastErr(err)
			if err != nil {
				r.logger.Error("pipeline process failed", zap.Int("passes", passes), zap.Error(err))
				continue
			}
			if passes > 1 {
				r.logger.Info("pipeline processed", zap.Int("passes", passes))
			}
		}
	}
}

// HealthCheck returns the error of the most recent cycle, if it failed.
func (r *Runner) HealthCheck(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr != nil {
		return fmt.Errorf("last pipeline cycle: %w", r.lastErr)
	}
	return nil
}

func (r *Runner) setLastErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
