package window

import (
	"fmt"
	"sort"
)

// Preset couples a stateless window with the batch cadence that runs it.
// The window width always equals the cadence so consecutive runs tile the
// timeline without gaps or overlaps.
type Preset struct {
	Name    string
	Min     int
	Max     int
	Cadence int // minutes between batch runs
}

// DefaultPreset is used when no preset is configured.
const DefaultPreset = "5m"

var presets = map[string]Preset{
	"5m":  {Name: "5m", Min: 3, Max: 8, Cadence: 5},
	"15m": {Name: "15m", Min: 3, Max: 18, Cadence: 15},
}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	p, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return Preset{}, fmt.Errorf("unknown window preset %q (known: %v)", name, names)
	}
	return p, nil
}

// Window returns the stateless policy for the preset.
func (p Preset) Window() OffsetWindow {
	return OffsetWindow{Min: p.Min, Max: p.Max}
}

// Validate checks the window bounds and the cadence coupling.
func (p Preset) Validate() error {
	return ValidateCadence(p.Min, p.Max, p.Cadence)
}

// CronSpec returns the five-field cron expression that fires every Cadence
// minutes.
func (p Preset) CronSpec() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	if 60%p.Cadence != 0 {
		return "", fmt.Errorf("cadence %d does not divide an hour", p.Cadence)
	}
	return fmt.Sprintf("*/%d * * * *", p.Cadence), nil
}

// ValidateCadence rejects a window whose width differs from the run cadence.
func ValidateCadence(min, max, cadence int) error {
	if min < 0 {
		return fmt.Errorf("window min offset must be >= 0, got %d", min)
	}
	if max <= min {
		return fmt.Errorf("window max offset %d must exceed min offset %d", max, min)
	}
	if cadence <= 0 {
		return fmt.Errorf("cadence must be positive, got %d", cadence)
	}
	if max-min != cadence {
		return fmt.Errorf("window [%d,%d) has width %d but cadence is %d minutes", min, max, max-min, cadence)
	}
	return nil
}
