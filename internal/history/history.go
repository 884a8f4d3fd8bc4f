// Package history records every dispatched notification to zero or more
// independent sinks. The log is append-only and is never read back to
// decide whether to notify.
package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/racewatch/internal/metrics"
	"github.com/albapepper/racewatch/internal/race"
)

// Dispatch modes.
const (
	ModeBatch   = "batch"
	ModeMonitor = "monitor"
)

const sinkTimeout = 10 * time.Second

// Record is one dispatched notification.
type Record struct {
	ID               uuid.UUID `json:"id"`
	DispatchedAt     time.Time `json:"dispatched_at"`
	EventDate        string    `json:"event_date"`
	VenueID          string    `json:"venue_id"`
	VenueName        string    `json:"venue_name"`
	Number           int       `json:"number"`
	DeadlineTime     string    `json:"deadline_time"`
	MinutesRemaining float64   `json:"minutes_remaining"`
	Mode             string    `json:"mode"`
}

// NewRecord builds a record for an event dispatched at now.
func NewRecord(e race.Event, minutesLeft float64, mode string, now time.Time) Record {
	return Record{
		ID:               uuid.New(),
		DispatchedAt:     now,
		EventDate:        e.Date,
		VenueID:          e.VenueID,
		VenueName:        e.VenueName,
		Number:           e.Number,
		DeadlineTime:     e.DeadlineTime,
		MinutesRemaining: minutesLeft,
		Mode:             mode,
	}
}

// Recorder appends a record to one sink.
type Recorder interface {
	Record(ctx context.Context, r Record) error
	Name() string
}

// Multi fans records out to every sink. One sink failing never affects the
// others, and Record always returns nil.
type Multi struct {
	sinks  []Recorder
	logger *slog.Logger
}

func NewMulti(logger *slog.Logger, sinks ...Recorder) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured sinks.
func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Record(ctx context.Context, r Record) error {
	for _, s := range m.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := s.Record(sctx, r)
		cancel()

		if err != nil {
			metrics.HistoryRecords.WithLabelValues(s.Name(), "error").Inc()
			m.logger.Warn("history write failed", "sink", s.Name(), "record_id", r.ID, "error", err)
			continue
		}
		metrics.HistoryRecords.WithLabelValues(s.Name(), "ok").Inc()
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *Multi) Close() {
	for _, s := range m.sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				m.logger.Warn("history sink close failed", "sink", s.Name(), "error", err)
			}
		}
	}
}
