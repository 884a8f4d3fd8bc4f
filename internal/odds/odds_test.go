package odds_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/albapepper/racewatch/internal/odds"
)

func obs(values map[int]string) odds.Observation {
	o := odds.Observation{}
	for k, v := range values {
		o[k] = decimal.RequireFromString(v)
	}
	return o
}

func TestEntrant1Favorite(t *testing.T) {
	tests := []struct {
		name string
		in   odds.Observation
		want odds.Favorite
	}{
		{"empty", odds.Observation{}, odds.Unknown},
		{"nil", nil, odds.Unknown},
		{"lowest", obs(map[int]string{1: "1.5", 2: "3.0", 3: "8.2"}), odds.Yes},
		{"tied at minimum", obs(map[int]string{1: "2.0", 2: "2.0"}), odds.Yes},
		{"above minimum", obs(map[int]string{1: "4.0", 2: "1.2"}), odds.No},
		{"entrant 1 absent", obs(map[int]string{2: "1.2", 3: "5.0"}), odds.No},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Entrant1Favorite(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFavoriteString(t *testing.T) {
	if odds.Unknown.String() != "unknown" || odds.Yes.String() != "true" || odds.No.String() != "false" {
		t.Error("Unexpected Favorite string values")
	}
}

type stubFetcher struct {
	url  string
	body []byte
	err  error
}

func (s *stubFetcher) Get(_ context.Context, url string) ([]byte, error) {
	s.url = url
	return s.body, s.err
}

type stubExtractor struct {
	obs odds.Observation
	err error
}

func (s stubExtractor) WinOdds([]byte) (odds.Observation, error) { return s.obs, s.err }

func TestEvaluator_FetchFailureIsUnknown(t *testing.T) {
	f := &stubFetcher{err: errors.New("down")}
	ev := odds.NewEvaluator(f, stubExtractor{}, "https://example.test/race", nil)

	if got := ev.IsEntrant1Favorite(context.Background(), "01", 5, "20240101"); got != odds.Unknown {
		t.Errorf("Expected unknown, got %s", got)
	}
	if !strings.Contains(f.url, "/oddstf?") || !strings.Contains(f.url, "jcd=01") ||
		!strings.Contains(f.url, "rno=5") || !strings.Contains(f.url, "hd=20240101") {
		t.Errorf("Unexpected odds URL %s", f.url)
	}
}

func TestEvaluator_ParseFailureIsUnknown(t *testing.T) {
	ev := odds.NewEvaluator(&stubFetcher{body: []byte("x")}, stubExtractor{err: errors.New("bad")}, "", nil)
	if got := ev.IsEntrant1Favorite(context.Background(), "01", 1, "20240101"); got != odds.Unknown {
		t.Errorf("Expected unknown, got %s", got)
	}
}

func TestEvaluator_Favorite(t *testing.T) {
	ex := stubExtractor{obs: obs(map[int]string{1: "1.1", 2: "6.0"})}
	ev := odds.NewEvaluator(&stubFetcher{body: []byte("x")}, ex, "", nil)
	if got := ev.IsEntrant1Favorite(context.Background(), "01", 1, "20240101"); got != odds.Yes {
		t.Errorf("Expected true, got %s", got)
	}
}
