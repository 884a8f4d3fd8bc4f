// Package schedule acquires the full day's event list across every active
// venue. Per-venue failures are collected and never abort the run.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/albapepper/racewatch/internal/markup"
	"github.com/albapepper/racewatch/internal/metrics"
	"github.com/albapepper/racewatch/internal/race"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultBaseURL  = "https://www.boatrace.jp/owpc/pc/race"
	DefaultPauseMin = 1 * time.Second
	DefaultPauseMax = 2 * time.Second
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Fetcher retrieves a page body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Config controls the acquirer.
type Config struct {
	BaseURL  string
	Location *time.Location
	PauseMin time.Duration
	PauseMax time.Duration
}

// Result tracks the outcome of a full acquisition.
type Result struct {
	Date     string        `json:"date"`
	Venues   []race.Venue  `json:"venues"`
	Events   []race.Event  `json:"events"`
	Failed   []string      `json:"failed,omitempty"`
	Duration time.Duration `json:"duration"`

	// IndexFailed is set when the venue directory itself could not be read.
	IndexFailed bool `json:"index_failed,omitempty"`
}

// Complete reports whether the result can stand in for the day's schedule:
// the directory was read and at least one listed venue succeeded.
func (r *Result) Complete() bool {
	if r.IndexFailed {
		return false
	}
	return len(r.Venues) == 0 || len(r.Failed) < len(r.Venues)
}

// Summary returns a human-readable summary.
func (r *Result) Summary() string {
	return fmt.Sprintf("date=%s venues=%d events=%d failed=%d dur=%s",
		r.Date, len(r.Venues), len(r.Events), len(r.Failed), r.Duration.Round(time.Millisecond))
}

// Acquirer walks the venue directory and each venue's schedule page.
type Acquirer struct {
	fetcher  Fetcher
	strategy markup.Strategy
	cfg      Config
	logger   *slog.Logger
}

// NewAcquirer creates an Acquirer. A zero PauseMax disables the pause.
func NewAcquirer(fetcher Fetcher, strategy markup.Strategy, cfg Config, logger *slog.Logger) *Acquirer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.PauseMax < cfg.PauseMin {
		cfg.PauseMax = cfg.PauseMin
	}
	return &Acquirer{fetcher: fetcher, strategy: strategy, cfg: cfg, logger: logger}
}

// Location returns the configured wall-clock location.
func (a *Acquirer) Location() *time.Location { return a.cfg.Location }

// BaseURL returns the upstream race base URL.
func (a *Acquirer) BaseURL() string { return a.cfg.BaseURL }

// --------------------------------------------------------------------------
// Acquisition
// --------------------------------------------------------------------------

// FetchAll acquires every event for date. Empty date means today in the
// configured location.
func (a *Acquirer) FetchAll(ctx context.Context, date string) Result {
	start := time.Now()
	if date == "" {
		date = race.Today(start, a.cfg.Location)
	}
	result := Result{Date: date, Venues: []race.Venue{}, Events: []race.Event{}}

	venues, err := a.Venues(ctx, date)
	if err != nil {
		a.logger.Error("venue listing failed", "date", date, "error", err)
		result.IndexFailed = true
		result.Duration = time.Since(start)
		return result
	}
	result.Venues = venues
	if len(venues) == 0 {
		a.logger.Info("no active venues", "date", date)
		result.Duration = time.Since(start)
		return result
	}

	a.logger.Info("acquiring schedules", "date", date, "venues", len(venues))

	for _, v := range venues {
		events, err := a.VenueSchedule(ctx, v, date)
		if err != nil {
			a.logger.Warn("venue schedule failed", "venue_id", v.ID, "venue", v.Name, "error", err)
			result.Failed = append(result.Failed, v.ID)
			metrics.VenuesFailed.Inc()
		} else {
			result.Events = append(result.Events, events...)
			metrics.EventsAcquired.Add(float64(len(events)))
		}

		if err := a.pause(ctx); err != nil {
			a.logger.Warn("acquisition interrupted", "date", date, "error", err)
			break
		}
	}

	result.Duration = time.Since(start)
	a.logger.Info("schedule acquisition complete", "summary", result.Summary())
	return result
}

// Venues lists the active venues for date.
func (a *Acquirer) Venues(ctx context.Context, date string) ([]race.Venue, error) {
	page, err := a.fetcher.Get(ctx, a.IndexURL(date))
	if err != nil {
		return nil, fmt.Errorf("fetch venue index: %w", err)
	}
	venues, err := a.strategy.Venues.Venues(page)
	if err != nil {
		return nil, fmt.Errorf("parse venue index: %w", err)
	}
	return venues, nil
}

// VenueSchedule lists one venue's events, tagged with the venue name.
func (a *Acquirer) VenueSchedule(ctx context.Context, v race.Venue, date string) ([]race.Event, error) {
	page, err := a.fetcher.Get(ctx, a.VenueURL(v.ID, date))
	if err != nil {
		return nil, fmt.Errorf("fetch venue %s: %w", v.ID, err)
	}
	events, err := a.strategy.Schedule.Schedule(page, v.ID, date, a.cfg.Location)
	if err != nil {
		return nil, fmt.Errorf("parse venue %s: %w", v.ID, err)
	}
	for i := range events {
		events[i].VenueName = v.Name
	}
	return events, nil
}

// IndexURL returns the venue directory page for date.
func (a *Acquirer) IndexURL(date string) string {
	return fmt.Sprintf("%s/index?hd=%s", a.cfg.BaseURL, url.QueryEscape(date))
}

// VenueURL returns the race index page for one venue.
func (a *Acquirer) VenueURL(venueID, date string) string {
	return fmt.Sprintf("%s/raceindex?jcd=%s&hd=%s", a.cfg.BaseURL, url.QueryEscape(venueID), url.QueryEscape(date))
}

func (a *Acquirer) pause(ctx context.Context) error {
	d := a.cfg.PauseMin
	if span := a.cfg.PauseMax - a.cfg.PauseMin; span > 0 {
		d += rand.N(span + 1)
	}
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
