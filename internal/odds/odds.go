// Package odds evaluates whether entrant #1 is the single-win favorite for
// a race, based on the odds page observed at call time.
package odds

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Observation maps entrant number to a strictly positive single-win odds value.
type Observation map[int]decimal.Decimal

// Favorite is a tri-state answer. Unknown means no odds could be observed.
type Favorite int

const (
	Unknown Favorite = iota
	Yes
	No
)

func (f Favorite) String() string {
	switch f {
	case Yes:
		return "true"
	case No:
		return "false"
	default:
		return "unknown"
	}
}

// Entrant1Favorite reports whether entrant 1 holds the minimum odds.
// Ties at the minimum count as favorite.
func (o Observation) Entrant1Favorite() Favorite {
	if len(o) == 0 {
		return Unknown
	}

	first := true
	var lowest decimal.Decimal
	for _, v := range o {
		if first || v.LessThan(lowest) {
			lowest = v
			first = false
		}
	}

	v, ok := o[1]
	if ok && v.Equal(lowest) {
		return Yes
	}
	return No
}

// --------------------------------------------------------------------------
// Evaluator
// --------------------------------------------------------------------------

// Fetcher retrieves a page body.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Extractor pulls win odds out of an odds page.
type Extractor interface {
	WinOdds(page []byte) (Observation, error)
}

// Evaluator fetches odds pages and answers the favorite question.
type Evaluator struct {
	fetcher   Fetcher
	extractor Extractor
	baseURL   string
	logger    *slog.Logger
}

// NewEvaluator creates an Evaluator against the upstream race base URL.
func NewEvaluator(fetcher Fetcher, extractor Extractor, baseURL string, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{fetcher: fetcher, extractor: extractor, baseURL: baseURL, logger: logger}
}

// OddsURL returns the single-win odds page for a race.
func (e *Evaluator) OddsURL(venueID string, number int, date string) string {
	return fmt.Sprintf("%s/oddstf?jcd=%s&rno=%d&hd=%s", e.baseURL, url.QueryEscape(venueID), number, url.QueryEscape(date))
}

// Observe fetches and parses the odds for one race.
func (e *Evaluator) Observe(ctx context.Context, venueID string, number int, date string) (Observation, error) {
	page, err := e.fetcher.Get(ctx, e.OddsURL(venueID, number, date))
	if err != nil {
		return nil, fmt.Errorf("fetch odds %s %dR: %w", venueID, number, err)
	}
	obs, err := e.extractor.WinOdds(page)
	if err != nil {
		return nil, fmt.Errorf("parse odds %s %dR: %w", venueID, number, err)
	}
	return obs, nil
}

// IsEntrant1Favorite returns Unknown on any fetch or parse failure.
func (e *Evaluator) IsEntrant1Favorite(ctx context.Context, venueID string, number int, date string) Favorite {
	obs, err := e.Observe(ctx, venueID, number, date)
	if err != nil {
		e.logger.Warn("odds unavailable", "venue_id", venueID, "race", number, "error", err)
		return Unknown
	}
	fav := obs.Entrant1Favorite()
	e.logger.Debug("favorite evaluated",
		"venue_id", venueID, "race", number, "entrants", len(obs), "favorite", fav.String())
	return fav
}
