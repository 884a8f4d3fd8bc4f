package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/albapepper/racewatch/internal/history"
	"github.com/albapepper/racewatch/internal/metrics"
	"github.com/albapepper/racewatch/internal/odds"
	"github.com/albapepper/racewatch/internal/window"
)

// FavoriteChecker answers whether entrant 1 is the favorite for a race.
type FavoriteChecker interface {
	IsEntrant1Favorite(ctx context.Context, venueID string, number int, date string) odds.Favorite
}

// Outcome counts what happened to one batch of matches.
type Outcome struct {
	Qualified int `json:"qualified"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Summary returns a human-readable summary.
func (o Outcome) Summary() string {
	return fmt.Sprintf("qualified=%d sent=%d failed=%d skipped=%d", o.Qualified, o.Sent, o.Failed, o.Skipped)
}

// Add accumulates another outcome.
func (o *Outcome) Add(other Outcome) {
	o.Qualified += other.Qualified
	o.Sent += other.Sent
	o.Failed += other.Failed
	o.Skipped += other.Skipped
}

// DispatcherConfig controls message selection and filtering.
type DispatcherConfig struct {
	// Favorites enables the entrant-1 favorite filter when non-nil.
	Favorites FavoriteChecker

	// MonitorOffset is shown in monitor-mode titles.
	MonitorOffset int

	Now func() time.Time
}

// Dispatcher sends one notification per match and records each success.
type Dispatcher struct {
	sender   Sender
	recorder history.Recorder
	cfg      DispatcherConfig
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher. recorder may be nil.
func NewDispatcher(sender Sender, recorder history.Recorder, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{sender: sender, recorder: recorder, cfg: cfg, logger: logger}
}

// Dispatch processes matches in order. A failure on one match never stops
// the remaining ones.
func (d *Dispatcher) Dispatch(ctx context.Context, matches []window.Match, mode string) Outcome {
	var out Outcome
	out.Qualified = len(matches)

	for _, m := range matches {
		if ctx.Err() != nil {
			out.Skipped += out.Qualified - out.Sent - out.Failed - out.Skipped
			break
		}

		e := m.Event
		log := d.logger.With("venue_id", e.VenueID, "venue", e.VenueName, "race", e.Number,
			"minutes_left", fmt.Sprintf("%.1f", m.MinutesLeft))

		if d.cfg.Favorites != nil {
			fav := d.cfg.Favorites.IsEntrant1Favorite(ctx, e.VenueID, e.Number, e.Date)
			if fav != odds.Yes {
				log.Info("skipped: entrant 1 not favorite", "favorite", fav.String())
				metrics.Notifications.WithLabelValues("skipped").Inc()
				out.Skipped++
				continue
			}
		}

		message, title := d.render(m, mode)
		if !d.sender.Send(ctx, message, title) {
			log.Warn("notification failed", "sender", d.sender.Name())
			metrics.Notifications.WithLabelValues("failed").Inc()
			out.Failed++
			continue
		}

		log.Info("notification sent", "sender", d.sender.Name(), "message", strings.ReplaceAll(message, "\n", " "))
		metrics.Notifications.WithLabelValues("sent").Inc()
		out.Sent++

		if d.recorder != nil {
			at := d.cfg.Now()
			rec := history.NewRecord(e, e.MinutesUntil(at), mode, at)
			if err := d.recorder.Record(ctx, rec); err != nil {
				log.Warn("history record failed", "recorder", d.recorder.Name(), "error", err)
			}
		}
	}
	return out
}

func (d *Dispatcher) render(m window.Match, mode string) (string, string) {
	if mode == history.ModeMonitor {
		return MonitorMessage(m, d.cfg.MonitorOffset)
	}
	return BatchMessage(m)
}
