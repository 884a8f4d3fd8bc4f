// Package batch runs the stateless deadline check: acquire today's schedule,
// evaluate the offset window once, dispatch, exit. Consecutive runs at the
// window's cadence tile the timeline, so no state is carried between runs.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/albapepper/racewatch/internal/history"
	"github.com/albapepper/racewatch/internal/notifications"
	"github.com/albapepper/racewatch/internal/schedule"
	"github.com/albapepper/racewatch/internal/window"
)

// Acquirer fetches a full day's schedule.
type Acquirer interface {
	FetchAll(ctx context.Context, date string) schedule.Result
}

// Dispatcher delivers matches.
type Dispatcher interface {
	Dispatch(ctx context.Context, matches []window.Match, mode string) notifications.Outcome
}

// Result tracks the outcome of one batch pass.
type Result struct {
	Schedule schedule.Result
	Matches  []window.Match
	Outcome  notifications.Outcome
	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf("events=%d failed_venues=%d matches=%d %s dur=%s",
		len(r.Schedule.Events), len(r.Schedule.Failed), len(r.Matches),
		r.Outcome.Summary(), r.Duration.Round(time.Millisecond))
}

// Runner executes single batch passes.
type Runner struct {
	acq    Acquirer
	disp   Dispatcher
	window window.OffsetWindow
	now    func() time.Time
	logger *slog.Logger
}

// NewRunner creates a Runner for the given stateless window.
func NewRunner(acq Acquirer, disp Dispatcher, w window.OffsetWindow, now func() time.Time, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Runner{acq: acq, disp: disp, window: w, now: now, logger: logger}
}

// RunOnce performs one full pass for today. The evaluation instant is taken
// after acquisition completes.
func (r *Runner) RunOnce(ctx context.Context) Result {
	start := time.Now()
	var result Result

	result.Schedule = r.acq.FetchAll(ctx, "")
	if len(result.Schedule.Events) == 0 {
		r.logger.Info("No events scheduled", "date", result.Schedule.Date)
		result.Duration = time.Since(start)
		return result
	}

	now := r.now()
	result.Matches = r.window.Evaluate(result.Schedule.Events, now)
	for _, m := range result.Matches {
		r.logger.Info("Match",
			"venue", m.Event.VenueName, "race", m.Event.Number,
			"minutes_left", fmt.Sprintf("%.1f", m.MinutesLeft))
	}

	result.Outcome = r.disp.Dispatch(ctx, result.Matches, history.ModeBatch)
	result.Duration = time.Since(start)

	r.logger.Info("Batch complete", "now", now.Format("15:04:05"), "summary", result.Summary())
	return result
}

// --------------------------------------------------------------------------
// Cron
// --------------------------------------------------------------------------

// Schedule runs RunOnce on the preset's cadence until ctx is cancelled.
// Overlapping runs are skipped rather than queued.
func Schedule(ctx context.Context, r *Runner, preset window.Preset, loc *time.Location, timeout time.Duration) error {
	spec, err := preset.CronSpec()
	if err != nil {
		return err
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = time.Duration(preset.Cadence) * time.Minute
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		r.RunOnce(runCtx)
	}); err != nil {
		return fmt.Errorf("add cron job %q: %w", spec, err)
	}

	r.logger.Info("Batch scheduler started", "spec", spec, "window", fmt.Sprintf("[%d,%d)", preset.Min, preset.Max))
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	r.logger.Info("Batch scheduler stopped")
	return nil
}
