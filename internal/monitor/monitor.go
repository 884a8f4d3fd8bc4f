// Package monitor runs the stateful single-shot deadline loop.
//
// The schedule is acquired once at start and again whenever the local date
// changes. A day whose acquisition failed is retried on later polls until it
// loads. Every poll evaluates the single-shot policy, so each event is
// notified at most once for the lifetime of the process.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/albapepper/racewatch/internal/history"
	"github.com/albapepper/racewatch/internal/metrics"
	"github.com/albapepper/racewatch/internal/notifications"
	"github.com/albapepper/racewatch/internal/race"
	"github.com/albapepper/racewatch/internal/schedule"
	"github.com/albapepper/racewatch/internal/window"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Acquirer fetches a full day's schedule.
type Acquirer interface {
	FetchAll(ctx context.Context, date string) schedule.Result
}

// Dispatcher delivers matches.
type Dispatcher interface {
	Dispatch(ctx context.Context, matches []window.Match, mode string) notifications.Outcome
}

// Config controls the loop.
type Config struct {
	Offset   int
	Poll     time.Duration
	Location *time.Location
	Now      func() time.Time

	// Retry is the minimum gap between attempts to reload a schedule whose
	// acquisition failed.
	Retry time.Duration
}

// TrackedEvent is one event as seen by the status API.
type TrackedEvent struct {
	race.Event
	MinutesLeft float64 `json:"minutes_left"`
	Notified    bool    `json:"notified"`
}

// Snapshot is the monitor state at one instant.
type Snapshot struct {
	Date        string                `json:"date"`
	GeneratedAt time.Time             `json:"generated_at"`
	Offset      int                   `json:"offset_minutes"`
	Tracked     int                   `json:"notified_count"`
	Totals      notifications.Outcome `json:"totals"`
	Events      []TrackedEvent        `json:"events"`
}

// Monitor owns the event list and the single-shot policy.
type Monitor struct {
	acq    Acquirer
	disp   Dispatcher
	policy *window.SingleShot
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	date    string
	events  []race.Event
	totals  notifications.Outcome
	loaded  bool
	attempt time.Time
}

// New creates a Monitor.
func New(acq Acquirer, disp Dispatcher, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Poll <= 0 {
		cfg.Poll = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 5 * time.Minute
	}
	return &Monitor{
		acq:    acq,
		disp:   disp,
		policy: window.NewSingleShot(cfg.Offset),
		cfg:    cfg,
		logger: logger,
	}
}

// --------------------------------------------------------------------------
// Loop
// --------------------------------------------------------------------------

// Initialize acquires today's schedule and returns the event count.
func (m *Monitor) Initialize(ctx context.Context) int {
	return m.refresh(ctx, race.Today(m.cfg.Now(), m.cfg.Location))
}

// Run initializes, then polls until ctx is cancelled. Returns immediately
// when there is nothing to monitor.
func (m *Monitor) Run(ctx context.Context) error {
	n := m.Initialize(ctx)
	if n == 0 {
		m.logger.Info("No events to monitor, exiting")
		return nil
	}

	m.logger.Info("Monitor started", "events", n, "offset_minutes", m.cfg.Offset, "poll", m.cfg.Poll)
	ticker := time.NewTicker(m.cfg.Poll)
	defer ticker.Stop()

	m.Tick(ctx)
	for {
		select {
		case <-ticker.C:
			m.Tick(ctx)
		case <-ctx.Done():
			m.logger.Info("Monitor stopped", "summary", m.Totals().Summary(), "notified", m.policy.Len())
			return nil
		}
	}
}

// Tick performs one poll: date rollover check, evaluation and dispatch.
func (m *Monitor) Tick(ctx context.Context) notifications.Outcome {
	now := m.cfg.Now()
	today := race.Today(now, m.cfg.Location)
	switch date, retry := m.stale(now); {
	case today != date:
		m.logger.Info("Date changed, refreshing schedule", "date", today)
		m.refresh(ctx, today)
	case retry:
		m.logger.Info("Retrying schedule acquisition", "date", today)
		m.refresh(ctx, today)
	}

	m.mu.RLock()
	events := m.events
	m.mu.RUnlock()

	matches := m.policy.Evaluate(events, now)
	metrics.MonitorTracked.Set(float64(m.policy.Len()))
	if len(matches) == 0 {
		return notifications.Outcome{}
	}

	out := m.disp.Dispatch(ctx, matches, history.ModeMonitor)
	m.logger.Info("Monitor tick", "summary", out.Summary())

	m.mu.Lock()
	m.totals.Add(out)
	m.mu.Unlock()
	return out
}

// stale returns the loaded date and whether its failed acquisition is due
// for another attempt.
func (m *Monitor) stale(now time.Time) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.date, !m.loaded && now.Sub(m.attempt) >= m.cfg.Retry
}

func (m *Monitor) refresh(ctx context.Context, date string) int {
	at := m.cfg.Now()
	res := m.acq.FetchAll(ctx, date)
	loaded := res.Complete()
	if !loaded {
		m.logger.Warn("Schedule acquisition incomplete, will retry",
			"date", date, "summary", res.Summary(), "retry", m.cfg.Retry)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.date = date
	m.events = res.Events
	m.loaded = loaded
	m.attempt = at
	return len(res.Events)
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// Date returns the date of the currently loaded schedule.
func (m *Monitor) Date() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.date
}

// Totals returns cumulative dispatch counts.
func (m *Monitor) Totals() notifications.Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

// Snapshot returns upcoming and notified events, soonest deadline first.
// Events whose deadline has passed are omitted unless they were notified.
func (m *Monitor) Snapshot() Snapshot {
	now := m.cfg.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Date:        m.date,
		GeneratedAt: now,
		Offset:      m.cfg.Offset,
		Tracked:     m.policy.Len(),
		Totals:      m.totals,
		Events:      []TrackedEvent{},
	}
	for _, e := range m.events {
		left := e.MinutesUntil(now)
		notified := m.policy.Notified(e.Key())
		if left <= 0 && !notified {
			continue
		}
		snap.Events = append(snap.Events, TrackedEvent{Event: e, MinutesLeft: left, Notified: notified})
	}
	sort.SliceStable(snap.Events, func(i, j int) bool {
		return snap.Events[i].MinutesLeft < snap.Events[j].MinutesLeft
	})
	return snap
}
