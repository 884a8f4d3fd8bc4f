package notifications

import (
	"fmt"

	"github.com/albapepper/racewatch/internal/window"
)

// Body renders the shared notification body. Minutes are truncated toward zero.
func Body(m window.Match) string {
	return fmt.Sprintf("%s %dR\nDeadline: %s (about %d min left)",
		m.Event.VenueName, m.Event.Number, m.Event.DeadlineTime, int(m.MinutesLeft))
}

// BatchMessage renders a stateless-window notification.
func BatchMessage(m window.Match) (message, title string) {
	return Body(m), fmt.Sprintf("⏳ Deadline soon (%d min)", int(m.MinutesLeft))
}

// MonitorMessage renders a single-shot notification for the given offset.
func MonitorMessage(m window.Match, offset int) (message, title string) {
	return Body(m), fmt.Sprintf("⏳ %d-minute deadline notice", offset)
}
