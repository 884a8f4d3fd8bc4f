package window_test

import (
	"testing"

	"github.com/albapepper/racewatch/internal/window"
)

func TestLookupPreset(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
		cron     string
	}{
		{"", 3, 8, "*/5 * * * *"},
		{"5m", 3, 8, "*/5 * * * *"},
		{"15m", 3, 18, "*/15 * * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := window.LookupPreset(tt.name)
			if err != nil {
				t.Fatalf("LookupPreset error: %v", err)
			}
			if p.Min != tt.min || p.Max != tt.max {
				t.Errorf("Expected [%d,%d), got [%d,%d)", tt.min, tt.max, p.Min, p.Max)
			}
			spec, err := p.CronSpec()
			if err != nil {
				t.Fatalf("CronSpec error: %v", err)
			}
			if spec != tt.cron {
				t.Errorf("Expected %q, got %q", tt.cron, spec)
			}
		})
	}

	if _, err := window.LookupPreset("7m"); err == nil {
		t.Error("Expected error for unknown preset")
	}
}

func TestValidateCadence(t *testing.T) {
	tests := []struct {
		name              string
		min, max, cadence int
		ok                bool
	}{
		{"coupled", 3, 8, 5, true},
		{"gap", 3, 8, 10, false},
		{"overlap", 3, 18, 5, false},
		{"inverted", 8, 3, 5, false},
		{"negative min", -1, 4, 5, false},
		{"zero cadence", 3, 3, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := window.ValidateCadence(tt.min, tt.max, tt.cadence)
			if tt.ok && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCronSpec_RejectsUnevenCadence(t *testing.T) {
	p := window.Preset{Name: "7m", Min: 3, Max: 10, Cadence: 7}
	if _, err := p.CronSpec(); err == nil {
		t.Error("Expected error for cadence that does not divide an hour")
	}
}
