// Package race defines the canonical venue and event types shared by the
// schedule acquisition, window detection and notification layers.
//
// Events are immutable once built. Their identity is (date, venue, number).
package race

import (
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DateLayout is the upstream date format used in every endpoint.
	DateLayout = "20060102"

	// DeadlineLayout combines the target date with the listed HH:MM time.
	DeadlineLayout = "20060102 15:04"

	// UnknownVenueName is used when a venue link carries no usable name.
	UnknownVenueName = "unknown"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Venue is an active race venue discovered for one target date.
type Venue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is one scheduled race with a betting deadline.
type Event struct {
	VenueID      string    `json:"venue_id"`
	VenueName    string    `json:"venue_name"`
	Number       int       `json:"number"`
	Date         string    `json:"date"`          // YYYYMMDD, as fetched
	DeadlineTime string    `json:"deadline_time"` // HH:MM, as listed
	Deadline     time.Time `json:"deadline"`
}

// Key identifies an event within the process.
type Key struct {
	Date    string
	VenueID string
	Number  int
}

func (k Key) String() string {
	return fmt.Sprintf("%s_%d@%s", k.VenueID, k.Number, k.Date)
}

// Key returns the event identity.
func (e Event) Key() Key {
	return Key{Date: e.Date, VenueID: e.VenueID, Number: e.Number}
}

// MinutesUntil returns the fractional minutes remaining until the deadline.
// Negative once the deadline has passed.
func (e Event) MinutesUntil(now time.Time) float64 {
	return e.Deadline.Sub(now).Minutes()
}

// --------------------------------------------------------------------------
// Date helpers
// --------------------------------------------------------------------------

// Today returns now formatted as an upstream date string in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(DateLayout)
}

// ParseDate validates a YYYYMMDD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYYMMDD): %w", s, err)
	}
	return t, nil
}

// ParseDeadline builds the deadline instant from the literal fetch date and
// the listed wall-clock time. No timezone conversion is applied.
func ParseDeadline(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DeadlineLayout, date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse deadline %q %q: %w", date, hhmm, err)
	}
	return t, nil
}
