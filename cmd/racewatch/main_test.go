package main

import (
	"testing"
	"time"

	"github.com/albapepper/racewatch/internal/config"
)

func TestRequireWebhook(t *testing.T) {
	tests := []struct {
		name    string
		webhook string
		dryRun  bool
		wantErr bool
	}{
		{"missing", "", false, true},
		{"missing dry run", "", true, false},
		{"set", "https://discord.example/api/webhooks/1/x", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireWebhook(&config.Config{DiscordWebhookURL: tt.webhook}, tt.dryRun)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestToday(t *testing.T) {
	cfg := &config.Config{Location: time.UTC}

	if got, err := today(cfg, "20240101"); err != nil || got != "20240101" {
		t.Errorf("Expected 20240101, got %q (%v)", got, err)
	}
	if _, err := today(cfg, "2024-01-01"); err == nil {
		t.Error("Expected error for malformed date")
	}
	got, err := today(cfg, "")
	if err != nil || len(got) != 8 {
		t.Errorf("Expected today's YYYYMMDD, got %q (%v)", got, err)
	}
}
