// Package markup extracts venues, schedules and odds from upstream HTML.
//
// Every assumption about the upstream page structure lives behind the
// extractor interfaces, grouped into a named Strategy. When the upstream
// changes its layout a new strategy is registered and selected through
// configuration, leaving callers untouched.
package markup

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/albapepper/racewatch/internal/odds"
	"github.com/albapepper/racewatch/internal/race"
)

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// VenueExtractor lists the active venues on a date index page.
type VenueExtractor interface {
	Venues(page []byte) ([]race.Venue, error)
}

// ScheduleExtractor lists the events on a single venue's race index page.
type ScheduleExtractor interface {
	Schedule(page []byte, venueID, date string, loc *time.Location) ([]race.Event, error)
}

// OddsExtractor reads single-win odds from a race odds page.
type OddsExtractor interface {
	WinOdds(page []byte) (odds.Observation, error)
}

// Strategy bundles the extractors for one upstream layout.
type Strategy struct {
	Name     string
	Venues   VenueExtractor
	Schedule ScheduleExtractor
	Odds     OddsExtractor
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// DefaultVersion is the layout used when none is configured.
const DefaultVersion = "v1"

var strategies = map[string]Strategy{
	"v1": {Name: "v1", Venues: v1Venues{}, Schedule: v1Schedule{}, Odds: v1Odds{}},
}

// Lookup returns the strategy registered under name. Empty selects the default.
func Lookup(name string) (Strategy, error) {
	if name == "" {
		name = DefaultVersion
	}
	s, ok := strategies[name]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown markup version %q (known: %s)", name, strings.Join(Versions(), ", "))
	}
	return s, nil
}

// Versions lists registered layout names in sorted order.
func Versions() []string {
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func parse(page []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// strippedText trims every descendant text node and concatenates them.
func strippedText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(n.Data))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
