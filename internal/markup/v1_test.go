package markup_test

import (
	"testing"
	"time"

	"github.com/albapepper/racewatch/internal/markup"
	"github.com/albapepper/racewatch/internal/odds"
)

func v1(t *testing.T) markup.Strategy {
	t.Helper()
	s, err := markup.Lookup("v1")
	if err != nil {
		t.Fatalf("Lookup v1: %v", err)
	}
	return s
}

func TestLookup(t *testing.T) {
	if s, err := markup.Lookup(""); err != nil || s.Name != markup.DefaultVersion {
		t.Errorf("Expected default strategy, got %q (%v)", s.Name, err)
	}
	if _, err := markup.Lookup("v99"); err == nil {
		t.Error("Expected error for unknown version")
	}
}

// --------------------------------------------------------------------------
// Venues
// --------------------------------------------------------------------------

func TestVenues_DedupeKeepsFirst(t *testing.T) {
	page := []byte(`<html><body>
		<a href="/owpc/pc/race/raceindex?jcd=04&hd=20240101"><img alt="Heiwajima>" src="x.png"></a>
		<a href="/owpc/pc/race/raceindex?jcd=01&hd=20240101"><img alt="Kiryu>"></a>
		<a href="/owpc/pc/race/raceindex?jcd=01&hd=20240101">Kiryu duplicate</a>
		<a href="/owpc/pc/race/index?hd=20240101">not a venue</a>
		<a href="/owpc/pc/race/raceindex?hd=20240101">no jcd</a>
		<a href="/owpc/pc/race/raceindex?jcd=12&hd=20240101">  Suminoe  </a>
	</body></html>`)

	venues, err := v1(t).Venues.Venues(page)
	if err != nil {
		t.Fatalf("Venues error: %v", err)
	}
	if len(venues) != 3 {
		t.Fatalf("Expected 3 venues, got %d: %+v", len(venues), venues)
	}

	want := []struct{ id, name string }{{"01", "Kiryu"}, {"04", "Heiwajima"}, {"12", "Suminoe"}}
	for i, w := range want {
		if venues[i].ID != w.id || venues[i].Name != w.name {
			t.Errorf("venue %d: expected %s/%s, got %s/%s", i, w.id, w.name, venues[i].ID, venues[i].Name)
		}
	}
}

func TestVenues_UnknownName(t *testing.T) {
	page := []byte(`<a href="raceindex?jcd=07"><img src="x.png"></a>`)
	venues, err := v1(t).Venues.Venues(page)
	if err != nil || len(venues) != 1 {
		t.Fatalf("Expected one venue, got %v (%v)", venues, err)
	}
	if venues[0].Name != "unknown" {
		t.Errorf("Expected name unknown, got %q", venues[0].Name)
	}
}

func TestVenues_Empty(t *testing.T) {
	venues, err := v1(t).Venues.Venues([]byte(`<html><body><p>no races today</p></body></html>`))
	if err != nil {
		t.Fatalf("Venues error: %v", err)
	}
	if len(venues) != 0 {
		t.Errorf("Expected no venues, got %d", len(venues))
	}
}

// --------------------------------------------------------------------------
// Schedule
// --------------------------------------------------------------------------

func TestSchedule_ParsesRows(t *testing.T) {
	page := []byte(`<html><body>
		<table>
			<tr><th>R</th><th>Deadline</th></tr>
			<tr><td><a>12R</a></td><td> 16:45 </td></tr>
			<tr><td>7R</td><td>25:99</td></tr>
			<tr><td>Final</td><td>17:00</td></tr>
			<tr><td>3R</td><td>TBD</td></tr>
			<tr><td>4R</td></tr>
			<tr><td>5 R</td><td>11:00</td></tr>
			<tr><td><span> 5 </span><span>R</span></td><td>11:02</td></tr>
		</table>
		<table><tr><td>9R</td><td>20:00</td></tr></table>
	</body></html>`)

	events, err := v1(t).Schedule.Schedule(page, "01", "20240101", time.UTC)
	if err != nil {
		t.Fatalf("Schedule error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(events), events)
	}

	e := events[0]
	if e.Number != 12 || e.VenueID != "01" || e.Date != "20240101" || e.DeadlineTime != "16:45" {
		t.Errorf("Unexpected event %+v", e)
	}
	want := time.Date(2024, 1, 1, 16, 45, 0, 0, time.UTC)
	if !e.Deadline.Equal(want) {
		t.Errorf("Expected deadline %v, got %v", want, e.Deadline)
	}
	if events[1].Number != 5 {
		t.Errorf("Expected second event race 5, got %d", events[1].Number)
	}
}

func TestSchedule_NonNumericFirstCell(t *testing.T) {
	page := []byte(`<table><tr><td>abc</td><td>16:45</td></tr></table>`)
	events, err := v1(t).Schedule.Schedule(page, "01", "20240101", time.UTC)
	if err != nil {
		t.Fatalf("Schedule error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no events, got %d", len(events))
	}
}

func TestSchedule_NoTable(t *testing.T) {
	events, err := v1(t).Schedule.Schedule([]byte(`<div>closed</div>`), "01", "20240101", time.UTC)
	if err != nil || len(events) != 0 {
		t.Errorf("Expected empty result, got %v (%v)", events, err)
	}
}

// --------------------------------------------------------------------------
// Odds
// --------------------------------------------------------------------------

func TestWinOdds(t *testing.T) {
	page := []byte(`<html><body>
		<table><tr><td class="is-boatColor1">1</td><td>x</td><td>9.9</td></tr></table>
		<table>
			<tr><th colspan="3">単勝オッズ</th></tr>
			<tr><td class="is-fs14 is-boatColor1">1</td><td>Racer A</td><td>1.8</td></tr>
			<tr><td class="is-boatColor2">2</td><td>Racer B</td><td>4.5</td></tr>
			<tr><td class="is-boatColor3">3</td><td>Racer C</td><td>欠場</td></tr>
			<tr><td class="is-boatColor4">4</td><td>Racer D</td><td>0.0</td></tr>
			<tr><td class="is-boatColor5">5</td><td>Racer E</td></tr>
			<tr><td>6</td><td>Racer F</td><td>2.0</td></tr>
		</table>
		<table>
			<tr><th>単勝</th></tr>
			<tr><td class="is-boatColor1">1</td><td>A</td><td>99.0</td></tr>
		</table>
	</body></html>`)

	obs, err := v1(t).Odds.WinOdds(page)
	if err != nil {
		t.Fatalf("WinOdds error: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("Expected 2 entrants, got %d: %v", len(obs), obs)
	}
	if obs[1].String() != "1.8" || obs[2].String() != "4.5" {
		t.Errorf("Unexpected odds %v", obs)
	}
	if obs.Entrant1Favorite() != odds.Yes {
		t.Error("Expected entrant 1 to be favorite")
	}
}

func TestWinOdds_SkipsEmptyMarkedTable(t *testing.T) {
	page := []byte(`
		<table><tr><th>単勝</th></tr><tr><td class="is-boatColor1">1</td><td>A</td><td>-</td></tr></table>
		<table><tr><th>単勝</th></tr><tr><td class="is-boatColor2">2</td><td>B</td><td>3.1</td></tr></table>`)

	obs, err := v1(t).Odds.WinOdds(page)
	if err != nil {
		t.Fatalf("WinOdds error: %v", err)
	}
	if len(obs) != 1 || obs[2].String() != "3.1" {
		t.Errorf("Expected odds from second table, got %v", obs)
	}
	if obs.Entrant1Favorite() != odds.No {
		t.Error("Expected entrant 1 not favorite when absent")
	}
}

func TestWinOdds_NoMarker(t *testing.T) {
	obs, err := v1(t).Odds.WinOdds([]byte(`<table><tr><td class="is-boatColor1">1</td><td>A</td><td>1.0</td></tr></table>`))
	if err != nil {
		t.Fatalf("WinOdds error: %v", err)
	}
	if obs.Entrant1Favorite() != odds.Unknown {
		t.Errorf("Expected unknown, got %v", obs)
	}
}
