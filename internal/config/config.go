// Package config provides centralized configuration loaded from environment
// variables, optionally layered over a YAML file. Shared by every racewatch
// subcommand.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/albapepper/racewatch/internal/fetch"
	"github.com/albapepper/racewatch/internal/maintenance"
	"github.com/albapepper/racewatch/internal/markup"
	"github.com/albapepper/racewatch/internal/schedule"
	"github.com/albapepper/racewatch/internal/window"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultHistoryTable  = "notification_history"
	DefaultHistoryDBPath = "data/history.db"
	DefaultHistoryStream = "racewatch.notifications"

	// ConfigFileEnv names the optional YAML file. Its keys are the same
	// names as the environment variables; the environment always wins.
	ConfigFileEnv = "RACEWATCH_CONFIG"
)

// --------------------------------------------------------------------------
// Config struct
// --------------------------------------------------------------------------

type Config struct {
	// Upstream
	BaseURL       string
	UserAgent     string
	Location      *time.Location
	MarkupVersion string

	// Fetching
	FetchMaxRetries        int
	FetchTimeout           time.Duration
	FetchBackoff           time.Duration
	FetchRequestsPerMinute int
	VenuePauseMin          time.Duration
	VenuePauseMax          time.Duration

	// Stateless window
	WindowPreset string
	WindowMin    int
	WindowMax    int
	BatchCadence int

	// Stateful monitor
	MonitorOffset int
	MonitorPoll   time.Duration

	// Notification
	FavoriteFilter    bool
	DiscordWebhookURL string

	// History
	HistoryDatabaseURL string
	HistoryTable       string
	HistoryDBPath      string
	RedisURL           string
	HistoryStream      string
	DBPoolMinConns     int
	DBPoolMaxConns     int
	DBPoolMaxLife      time.Duration
	HistoryRetention   time.Duration // opt-in; 0 keeps every record
	PruneInterval      time.Duration

	// Status API
	APIHost          string
	APIPort          int
	CORSAllowOrigins []string

	LogLevel slog.Level
}

// Load reads configuration from the optional YAML file and the environment.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv(ConfigFileEnv))
	if err != nil {
		return nil, err
	}
	return load(src)
}

func load(src source) (*Config, error) {
	presetName := src.str("WINDOW_PRESET", window.DefaultPreset)
	preset, err := window.LookupPreset(presetName)
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := src.str("RACEWATCH_TIMEZONE", ""); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("RACEWATCH_TIMEZONE: %w", err)
		}
	}

	level, err := parseLevel(src.str("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseURL:       src.str("RACEWATCH_BASE_URL", schedule.DefaultBaseURL),
		UserAgent:     src.str("RACEWATCH_USER_AGENT", fetch.DefaultUserAgent),
		Location:      loc,
		MarkupVersion: src.str("MARKUP_VERSION", markup.DefaultVersion),

		FetchMaxRetries:        src.num("FETCH_MAX_RETRIES", fetch.DefaultMaxRetries),
		FetchTimeout:           time.Duration(src.num("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		FetchBackoff:           time.Duration(src.num("FETCH_BACKOFF_SECONDS", 2)) * time.Second,
		FetchRequestsPerMinute: src.num("FETCH_REQUESTS_PER_MINUTE", 0),
		VenuePauseMin:          time.Duration(src.num("VENUE_PAUSE_MIN_MS", 1000)) * time.Millisecond,
		VenuePauseMax:          time.Duration(src.num("VENUE_PAUSE_MAX_MS", 2000)) * time.Millisecond,

		WindowPreset: preset.Name,
		WindowMin:    src.num("WINDOW_MIN_OFFSET", preset.Min),
		WindowMax:    src.num("WINDOW_MAX_OFFSET", preset.Max),
		BatchCadence: src.num("BATCH_CADENCE_MINUTES", preset.Cadence),

		MonitorOffset: src.num("MONITOR_OFFSET_MINUTES", 3),
		MonitorPoll:   time.Duration(src.num("MONITOR_POLL_SECONDS", 60)) * time.Second,

		FavoriteFilter:    src.flag("FAVORITE_FILTER", false),
		DiscordWebhookURL: src.str("DISCORD_WEBHOOK_URL", ""),

		HistoryDatabaseURL: src.str("HISTORY_DATABASE_URL", ""),
		HistoryTable:       src.str("HISTORY_TABLE", DefaultHistoryTable),
		HistoryDBPath:      src.strAllowEmpty("HISTORY_DB_PATH", DefaultHistoryDBPath),
		RedisURL:           src.str("REDIS_URL", ""),
		HistoryStream:      src.str("HISTORY_STREAM", DefaultHistoryStream),
		DBPoolMinConns:     src.num("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns:     src.num("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:      time.Duration(src.num("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		HistoryRetention:   time.Duration(src.num("HISTORY_RETENTION_DAYS", 0)) * 24 * time.Hour,
		PruneInterval:      time.Duration(src.num("HISTORY_PRUNE_INTERVAL_MINUTES", 30)) * time.Minute,

		APIHost: src.str("API_HOST", "127.0.0.1"),
		APIPort: src.num("API_PORT", 8090),
		CORSAllowOrigins: src.list("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		LogLevel: level,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := window.ValidateCadence(c.WindowMin, c.WindowMax, c.BatchCadence); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	if c.MonitorOffset <= 0 {
		return fmt.Errorf("MONITOR_OFFSET_MINUTES must be positive, got %d", c.MonitorOffset)
	}
	if c.MonitorPoll <= 0 {
		return fmt.Errorf("MONITOR_POLL_SECONDS must be positive")
	}
	if c.FetchMaxRetries < 1 {
		return fmt.Errorf("FETCH_MAX_RETRIES must be >= 1, got %d", c.FetchMaxRetries)
	}
	if c.VenuePauseMin < 0 || c.VenuePauseMax < c.VenuePauseMin {
		return fmt.Errorf("venue pause range [%s,%s] is invalid", c.VenuePauseMin, c.VenuePauseMax)
	}
	if _, err := markup.Lookup(c.MarkupVersion); err != nil {
		return err
	}
	if c.HistoryRetention < 0 {
		return fmt.Errorf("HISTORY_RETENTION_DAYS must not be negative")
	}
	if c.HistoryDatabaseURL != "" && c.HistoryTable == "" {
		return fmt.Errorf("HISTORY_TABLE must be set when HISTORY_DATABASE_URL is set")
	}
	return nil
}

// Preset returns the effective stateless window and cadence.
func (c *Config) Preset() window.Preset {
	return window.Preset{Name: c.WindowPreset, Min: c.WindowMin, Max: c.WindowMax, Cadence: c.BatchCadence}
}

// MaintenanceConfig returns the history retention settings.
func (c *Config) MaintenanceConfig() maintenance.Config {
	return maintenance.Config{PruneInterval: c.PruneInterval, Retention: c.HistoryRetention}
}

// FetchConfig returns the retrying client settings.
func (c *Config) FetchConfig() fetch.Config {
	return fetch.Config{
		MaxRetries:        c.FetchMaxRetries,
		Timeout:           c.FetchTimeout,
		Backoff:           c.FetchBackoff,
		UserAgent:         c.UserAgent,
		RequestsPerMinute: c.FetchRequestsPerMinute,
	}
}

// ScheduleConfig returns the acquirer settings.
func (c *Config) ScheduleConfig() schedule.Config {
	return schedule.Config{
		BaseURL:  c.BaseURL,
		Location: c.Location,
		PauseMin: c.VenuePauseMin,
		PauseMax: c.VenuePauseMax,
	}
}

// ListenAddr returns host:port for the status API.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// --------------------------------------------------------------------------
// Sources
// --------------------------------------------------------------------------

// source resolves a key from the environment first, then the YAML file.
type source struct {
	env  func(string) (string, bool)
	file map[string]string
}

func newSource(path string) (source, error) {
	src := source{env: os.LookupEnv, file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return src, fmt.Errorf("read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return src, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			src.file[k] = ""
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			src.file[k] = strings.Join(parts, ",")
		default:
			src.file[k] = fmt.Sprint(val)
		}
	}
	return src, nil
}

func (s source) lookup(key string) (string, bool) {
	if v, ok := s.env(key); ok {
		return v, true
	}
	v, ok := s.file[key]
	return v, ok
}

func (s source) str(key, fallback string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

// strAllowEmpty treats an explicitly empty value as "disabled".
func (s source) strAllowEmpty(key, fallback string) string {
	if v, ok := s.lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (s source) num(key string, fallback int) int {
	if v, ok := s.lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) flag(key string, fallback bool) bool {
	if v, ok := s.lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func (s source) list(key string, fallback []string) []string {
	if v, ok := s.lookup(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
