// Package window decides which events fall inside a deadline lookahead
// window at a given instant.
//
// OffsetWindow is a pure predicate for periodic stateless runs. SingleShot
// carries the set of already-notified events for one long-running process
// and never qualifies the same event twice.
package window

import (
	"sort"
	"sync"
	"time"

	"github.com/albapepper/racewatch/internal/metrics"
	"github.com/albapepper/racewatch/internal/race"
)

// Policy selects qualifying events at instant now.
type Policy interface {
	Evaluate(events []race.Event, now time.Time) []Match
}

// Match is a qualifying event with its fractional minutes remaining.
type Match struct {
	Event       race.Event `json:"event"`
	MinutesLeft float64    `json:"minutes_left"`
}

// --------------------------------------------------------------------------
// Stateless
// --------------------------------------------------------------------------

// OffsetWindow qualifies events with Min <= minutes remaining < Max.
type OffsetWindow struct {
	Min int
	Max int
}

// Contains reports whether m minutes remaining falls inside the window.
func (w OffsetWindow) Contains(m float64) bool {
	return float64(w.Min) <= m && m < float64(w.Max)
}

func (w OffsetWindow) Evaluate(events []race.Event, now time.Time) []Match {
	var matches []Match
	for _, e := range events {
		m := e.MinutesUntil(now)
		if w.Contains(m) {
			matches = append(matches, Match{Event: e, MinutesLeft: m})
		}
	}
	sortMatches(matches)
	metrics.WindowMatches.WithLabelValues("offset").Add(float64(len(matches)))
	return matches
}

// --------------------------------------------------------------------------
// Stateful
// --------------------------------------------------------------------------

// SingleShot qualifies events with 0 < minutes remaining <= Offset, at most
// once per event for the lifetime of the value.
type SingleShot struct {
	Offset int

	mu       sync.Mutex
	notified map[race.Key]struct{}
}

// NewSingleShot creates an empty stateful policy.
func NewSingleShot(offset int) *SingleShot {
	return &SingleShot{Offset: offset, notified: make(map[race.Key]struct{})}
}

// Evaluate marks every qualifying event as notified before returning it.
func (s *SingleShot) Evaluate(events []race.Event, now time.Time) []Match {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []Match
	for _, e := range events {
		m := e.MinutesUntil(now)
		if m <= 0 || m > float64(s.Offset) {
			continue
		}
		key := e.Key()
		if _, done := s.notified[key]; done {
			continue
		}
		s.notified[key] = struct{}{}
		matches = append(matches, Match{Event: e, MinutesLeft: m})
	}
	sortMatches(matches)
	metrics.WindowMatches.WithLabelValues("single_shot").Add(float64(len(matches)))
	return matches
}

// Notified reports whether key has already qualified.
func (s *SingleShot) Notified(key race.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notified[key]
	return ok
}

// Len returns the number of marked events.
func (s *SingleShot) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notified)
}

// Reset forgets every marked event.
func (s *SingleShot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = make(map[race.Key]struct{})
}

// sortMatches orders by soonest deadline, then venue id, then race number.
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.MinutesLeft != b.MinutesLeft {
			return a.MinutesLeft < b.MinutesLeft
		}
		if a.Event.VenueID != b.Event.VenueID {
			return a.Event.VenueID < b.Event.VenueID
		}
		return a.Event.Number < b.Event.Number
	})
}
