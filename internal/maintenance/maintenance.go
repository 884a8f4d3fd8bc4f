// Package maintenance runs periodic background tasks as Go tickers for the
// long-running modes.
package maintenance

import (
	"context"
	"log/slog"
	"time"
)

// Config controls maintenance task intervals. Zero duration disables a task.
// History is append-only unless an operator sets Retention explicitly.
type Config struct {
	PruneInterval time.Duration // How often history retention runs
	Retention     time.Duration // Records older than this are deleted; 0 keeps all
}

// DefaultConfig keeps every record.
func DefaultConfig() Config {
	return Config{PruneInterval: 30 * time.Minute}
}

// Pruner is a history sink that supports retention.
type Pruner interface {
	Name() string
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pruners []Pruner, cfg Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PruneInterval <= 0 || cfg.Retention <= 0 || len(pruners) == 0 {
		logger.Debug("Maintenance disabled")
		return
	}

	logger.Info("Maintenance tickers started",
		"prune", cfg.PruneInterval,
		"retention", cfg.Retention,
		"sinks", len(pruners))

	t := time.NewTicker(cfg.PruneInterval)
	defer t.Stop()

	prune := func() { PruneOnce(ctx, pruners, time.Now().Add(-cfg.Retention), logger) }
	prune()
	runLoop(ctx, t.C, prune)

	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// PruneOnce removes records dispatched before cutoff from every sink and
// returns the total removed. One sink failing does not stop the others.
func PruneOnce(ctx context.Context, pruners []Pruner, cutoff time.Time, logger *slog.Logger) int64 {
	if logger == nil {
		logger = slog.Default()
	}
	var total int64
	for _, p := range pruners {
		n, err := p.Prune(ctx, cutoff)
		if err != nil {
			logger.Warn("Prune: failed", "sink", p.Name(), "error", err)
			continue
		}
		if n > 0 {
			logger.Info("Prune: removed old records", "sink", p.Name(), "count", n)
		}
		total += n
	}
	return total
}
