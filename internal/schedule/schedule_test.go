package schedule_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/racewatch/internal/fetch"
	"github.com/albapepper/racewatch/internal/markup"
	"github.com/albapepper/racewatch/internal/race"
	"github.com/albapepper/racewatch/internal/schedule"
)

const indexPage = `<html><body>
	<a href="/race/raceindex?jcd=02&hd=20240101"><img alt="Toda>"></a>
	<a href="/race/raceindex?jcd=01&hd=20240101"><img alt="Kiryu>"></a>
	<a href="/race/raceindex?jcd=03&hd=20240101">Edogawa</a>
</body></html>`

func venuePage(rows ...string) string {
	body := "<table>"
	for _, r := range rows {
		body += r
	}
	return body + "</table>"
}

func newAcquirer(t *testing.T, handler http.HandlerFunc) *schedule.Acquirer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	strategy, err := markup.Lookup("v1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	client := fetch.NewClient(fetch.Config{MaxRetries: 3, Backoff: time.Millisecond, Timeout: 2 * time.Second}, nil)
	return schedule.NewAcquirer(client, strategy, schedule.Config{BaseURL: srv.URL, Location: time.UTC}, nil)
}

func TestFetchAll_PartialFailure(t *testing.T) {
	var mu sync.Mutex
	attempts := map[string]int{}
	a := newAcquirer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index":
			fmt.Fprint(w, indexPage)
		case "/raceindex":
			jcd := r.URL.Query().Get("jcd")
			mu.Lock()
			attempts[jcd]++
			mu.Unlock()
			switch jcd {
			case "01":
				fmt.Fprint(w, venuePage(`<tr><td>1R</td><td>10:30</td></tr>`, `<tr><td>2R</td><td>11:00</td></tr>`))
			case "02":
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			case "03":
				fmt.Fprint(w, venuePage(`<tr><td>12R</td><td>16:45</td></tr>`))
			}
		default:
			http.NotFound(w, r)
		}
	})

	res := a.FetchAll(context.Background(), "20240101")

	if len(res.Venues) != 3 {
		t.Fatalf("Expected 3 venues, got %d", len(res.Venues))
	}
	if len(res.Events) != 3 {
		t.Fatalf("Expected 3 events, got %d: %+v", len(res.Events), res.Events)
	}
	if len(res.Failed) != 1 || res.Failed[0] != "02" {
		t.Errorf("Expected venue 02 failed, got %v", res.Failed)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts["02"] != 3 {
		t.Errorf("Expected 3 attempts for failing venue, got %d", attempts["02"])
	}

	first, last := res.Events[0], res.Events[2]
	if first.VenueID != "01" || first.VenueName != "Kiryu" || first.Number != 1 {
		t.Errorf("Unexpected first event %+v", first)
	}
	if last.VenueID != "03" || last.VenueName != "Edogawa" || last.Number != 12 {
		t.Errorf("Unexpected last event %+v", last)
	}
	if want := time.Date(2024, 1, 1, 16, 45, 0, 0, time.UTC); !last.Deadline.Equal(want) {
		t.Errorf("Expected deadline %v, got %v", want, last.Deadline)
	}
}

func TestFetchAll_IndexFailureIsEmpty(t *testing.T) {
	a := newAcquirer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := a.FetchAll(context.Background(), "20240101")
	if len(res.Venues) != 0 || len(res.Events) != 0 {
		t.Errorf("Expected empty result, got %+v", res)
	}
	if res.Date != "20240101" {
		t.Errorf("Expected date 20240101, got %s", res.Date)
	}
	if !res.IndexFailed || res.Complete() {
		t.Errorf("Expected incomplete result after index failure, got %+v", res)
	}
}

func TestResult_Complete(t *testing.T) {
	tests := []struct {
		name string
		res  schedule.Result
		want bool
	}{
		{"index failed", schedule.Result{IndexFailed: true}, false},
		{"no venues", schedule.Result{}, true},
		{"all venues failed", schedule.Result{Venues: make([]race.Venue, 2), Failed: []string{"01", "02"}}, false},
		{"partial failure", schedule.Result{Venues: make([]race.Venue, 2), Failed: []string{"01"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Complete(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFetchAll_DefaultsToToday(t *testing.T) {
	var mu sync.Mutex
	var gotDate string
	a := newAcquirer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotDate = r.URL.Query().Get("hd")
		mu.Unlock()
		fmt.Fprint(w, "<html></html>")
	})

	res := a.FetchAll(context.Background(), "")
	want := time.Now().In(time.UTC).Format("20060102")
	mu.Lock()
	defer mu.Unlock()
	if res.Date != want || gotDate != want {
		t.Errorf("Expected date %s, got result=%s request=%s", want, res.Date, gotDate)
	}
}

func TestURLs(t *testing.T) {
	strategy, _ := markup.Lookup("v1")
	a := schedule.NewAcquirer(nil, strategy, schedule.Config{BaseURL: "https://example.test/race/"}, nil)

	if got := a.IndexURL("20240101"); got != "https://example.test/race/index?hd=20240101" {
		t.Errorf("Unexpected index URL %s", got)
	}
	if got := a.VenueURL("05", "20240101"); got != "https://example.test/race/raceindex?jcd=05&hd=20240101" {
		t.Errorf("Unexpected venue URL %s", got)
	}
}

func TestSummary(t *testing.T) {
	r := schedule.Result{Date: "20240101", Failed: []string{"02"}}
	if got := r.Summary(); got != "date=20240101 venues=0 events=0 failed=1 dur=0s" {
		t.Errorf("Unexpected summary %q", got)
	}
}
