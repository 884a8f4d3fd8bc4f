package markup

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/albapepper/racewatch/internal/odds"
	"github.com/albapepper/racewatch/internal/race"
)

const (
	raceIndexMarker = "raceindex"
	winOddsMarker   = "単勝"
	boatColorClass  = "is-boatColor"
)

// --------------------------------------------------------------------------
// Venues
// --------------------------------------------------------------------------

type v1Venues struct{}

func (v1Venues) Venues(page []byte) ([]race.Venue, error) {
	doc, err := parse(page)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	venues := []race.Venue{}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !strings.Contains(href, raceIndexMarker) {
			return
		}
		id := venueIDFromHref(href)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		venues = append(venues, race.Venue{ID: id, Name: venueName(a)})
	})

	sort.SliceStable(venues, func(i, j int) bool { return venues[i].ID < venues[j].ID })
	return venues, nil
}

func venueIDFromHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get("jcd"))
}

func venueName(a *goquery.Selection) string {
	if alt, ok := a.Find("img").First().Attr("alt"); ok {
		if name := strings.TrimSpace(strings.ReplaceAll(alt, ">", "")); name != "" {
			return name
		}
	}
	if name := strippedText(a); name != "" {
		return name
	}
	return race.UnknownVenueName
}

// --------------------------------------------------------------------------
// Schedule
// --------------------------------------------------------------------------

type v1Schedule struct{}

// Schedule reads only the first table on the page. Rows that do not carry a
// race number and a deadline time are skipped.
func (v1Schedule) Schedule(page []byte, venueID, date string, loc *time.Location) ([]race.Event, error) {
	doc, err := parse(page)
	if err != nil {
		return nil, err
	}

	events := []race.Event{}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return events, nil
	}

	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}

		numText := strings.ReplaceAll(strippedText(cells.Eq(0)), "R", "")
		if !isDigits(numText) {
			return
		}
		number, err := strconv.Atoi(numText)
		if err != nil || number <= 0 {
			return
		}

		hhmm := strippedText(cells.Eq(1))
		if !strings.Contains(hhmm, ":") {
			return
		}
		deadline, err := race.ParseDeadline(date, hhmm, loc)
		if err != nil {
			return
		}

		events = append(events, race.Event{
			VenueID:      venueID,
			Number:       number,
			Date:         date,
			DeadlineTime: hhmm,
			Deadline:     deadline,
		})
	})
	return events, nil
}

// --------------------------------------------------------------------------
// Odds
// --------------------------------------------------------------------------

type v1Odds struct{}

// WinOdds scans tables labelled with the single-win marker and stops at the
// first one that yields any odds.
func (v1Odds) WinOdds(page []byte) (odds.Observation, error) {
	doc, err := parse(page)
	if err != nil {
		return nil, err
	}

	obs := odds.Observation{}
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		if !strings.Contains(table.Text(), winOddsMarker) {
			return true
		}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			entrant, value, ok := oddsRow(tr)
			if ok {
				obs[entrant] = value
			}
		})
		return len(obs) == 0
	})
	return obs, nil
}

func oddsRow(tr *goquery.Selection) (int, decimal.Decimal, bool) {
	marker := tr.Find("td").FilterFunction(func(_ int, td *goquery.Selection) bool {
		class, _ := td.Attr("class")
		for _, c := range strings.Fields(class) {
			if strings.Contains(c, boatColorClass) {
				return true
			}
		}
		return false
	}).First()
	if marker.Length() == 0 {
		return 0, decimal.Decimal{}, false
	}

	entrant, err := strconv.Atoi(strippedText(marker))
	if err != nil {
		return 0, decimal.Decimal{}, false
	}

	oddsCell := marker.NextAllFiltered("td").Eq(1)
	if oddsCell.Length() == 0 {
		return 0, decimal.Decimal{}, false
	}
	text := strippedText(oddsCell)
	if !isDigits(strings.ReplaceAll(text, ".", "")) {
		return 0, decimal.Decimal{}, false
	}
	value, err := decimal.NewFromString(text)
	if err != nil || !value.IsPositive() {
		return 0, decimal.Decimal{}, false
	}
	return entrant, value, true
}
