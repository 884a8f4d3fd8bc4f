package race_test

import (
	"testing"
	"time"

	"github.com/albapepper/racewatch/internal/race"
)

func TestParseDeadline(t *testing.T) {
	got, err := race.ParseDeadline("20240101", "16:45", time.UTC)
	if err != nil {
		t.Fatalf("ParseDeadline error: %v", err)
	}
	want := time.Date(2024, 1, 1, 16, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseDeadline_Invalid(t *testing.T) {
	for _, hhmm := range []string{"", "16", "aa:bb", "25:00"} {
		if _, err := race.ParseDeadline("20240101", hhmm, time.UTC); err == nil {
			t.Errorf("Expected error for %q", hhmm)
		}
	}
}

func TestMinutesUntil(t *testing.T) {
	e := race.Event{Deadline: time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)}
	now := time.Date(2024, 1, 1, 14, 48, 0, 0, time.UTC)
	if m := e.MinutesUntil(now); m != 12 {
		t.Errorf("Expected 12 minutes, got %v", m)
	}
	if m := e.MinutesUntil(now.Add(13 * time.Minute)); m >= 0 {
		t.Errorf("Expected negative minutes after deadline, got %v", m)
	}
}

func TestKeyString(t *testing.T) {
	e := race.Event{VenueID: "01", Number: 5, Date: "20240101"}
	if got := e.Key().String(); got != "01_5@20240101" {
		t.Errorf("Expected key 01_5@20240101, got %s", got)
	}
}

func TestTodayAndParseDate(t *testing.T) {
	now := time.Date(2024, 3, 9, 23, 30, 0, 0, time.UTC)
	if got := race.Today(now, time.UTC); got != "20240309" {
		t.Errorf("Expected 20240309, got %s", got)
	}
	if _, err := race.ParseDate("2024-03-09"); err == nil {
		t.Error("Expected error for dashed date")
	}
	if _, err := race.ParseDate("20240309"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}
