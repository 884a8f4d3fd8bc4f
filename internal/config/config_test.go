package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/albapepper/racewatch/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(config.ConfigFileEnv, "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.WindowMin != 3 || cfg.WindowMax != 8 || cfg.BatchCadence != 5 {
		t.Errorf("Expected default window [3,8)/5, got [%d,%d)/%d", cfg.WindowMin, cfg.WindowMax, cfg.BatchCadence)
	}
	if cfg.MonitorOffset != 3 || cfg.MonitorPoll != time.Minute {
		t.Errorf("Expected monitor 3 min / 60s, got %d / %s", cfg.MonitorOffset, cfg.MonitorPoll)
	}
	if cfg.FetchMaxRetries != 3 || cfg.FetchTimeout != 30*time.Second || cfg.FetchBackoff != 2*time.Second {
		t.Errorf("Unexpected fetch defaults %d %s %s", cfg.FetchMaxRetries, cfg.FetchTimeout, cfg.FetchBackoff)
	}
	if cfg.HistoryTable != config.DefaultHistoryTable {
		t.Errorf("Expected table %s, got %s", config.DefaultHistoryTable, cfg.HistoryTable)
	}
	if cfg.ListenAddr() != "127.0.0.1:8090" {
		t.Errorf("Expected 127.0.0.1:8090, got %s", cfg.ListenAddr())
	}
}

func TestLoad_Preset15m(t *testing.T) {
	t.Setenv("WINDOW_PRESET", "15m")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	spec, err := cfg.Preset().CronSpec()
	if err != nil {
		t.Fatalf("CronSpec error: %v", err)
	}
	if cfg.WindowMax != 18 || spec != "*/15 * * * *" {
		t.Errorf("Expected [3,18) every 15 min, got max=%d spec=%s", cfg.WindowMax, spec)
	}
}

func TestLoad_RejectsUncoupledWindow(t *testing.T) {
	t.Setenv("WINDOW_MAX_OFFSET", "18")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for [3,18) with 5 minute cadence")
	}
}

func TestLoad_RejectsUnknownPreset(t *testing.T) {
	t.Setenv("WINDOW_PRESET", "2h")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for unknown preset")
	}
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "racewatch.yaml")
	data := []byte(`
DISCORD_WEBHOOK_URL: https://discord.example/webhook
FAVORITE_FILTER: true
MONITOR_OFFSET_MINUTES: 5
CORS_ALLOW_ORIGINS:
  - https://a.example
  - https://b.example
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.ConfigFileEnv, path)
	t.Setenv("MONITOR_OFFSET_MINUTES", "4")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.DiscordWebhookURL != "https://discord.example/webhook" {
		t.Errorf("Expected webhook from file, got %q", cfg.DiscordWebhookURL)
	}
	if !cfg.FavoriteFilter {
		t.Error("Expected favorite filter enabled from file")
	}
	if cfg.MonitorOffset != 4 {
		t.Errorf("Expected env override 4, got %d", cfg.MonitorOffset)
	}
	if len(cfg.CORSAllowOrigins) != 2 || cfg.CORSAllowOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", cfg.CORSAllowOrigins)
	}
}

func TestLoad_EmptyHistoryPathDisablesLocalSink(t *testing.T) {
	t.Setenv("HISTORY_DB_PATH", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.HistoryDBPath != "" {
		t.Errorf("Expected empty history path, got %q", cfg.HistoryDBPath)
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	t.Setenv("RACEWATCH_TIMEZONE", "Mars/Olympus")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for invalid timezone")
	}
}

func TestLoad_Timezone(t *testing.T) {
	t.Setenv("RACEWATCH_TIMEZONE", "Asia/Tokyo")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Location.String() != "Asia/Tokyo" {
		t.Errorf("Expected Asia/Tokyo, got %s", cfg.Location)
	}
}

func TestLoad_Retention(t *testing.T) {
	t.Setenv("HISTORY_RETENTION_DAYS", "7")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	mc := cfg.MaintenanceConfig()
	if mc.Retention != 7*24*time.Hour || mc.PruneInterval != 30*time.Minute {
		t.Errorf("Expected 7d retention every 30m, got %s every %s", mc.Retention, mc.PruneInterval)
	}

	t.Setenv("HISTORY_RETENTION_DAYS", "-1")
	if _, err := config.Load(); err == nil {
		t.Error("Expected error for negative retention")
	}
}
