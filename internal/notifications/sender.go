// Package notifications renders deadline notices and delivers them through
// a Discord webhook, a local desktop notification, or the log.
//
// Pipeline: filter by favorite -> render -> send -> record history.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// DefaultTitle is used when a caller passes an empty title.
const DefaultTitle = "Race notice"

// Sender delivers one notification. Send never panics and reports delivery
// success as a bool; failures are logged by the sender itself.
type Sender interface {
	Send(ctx context.Context, message, title string) bool
	Name() string
}

// NewSender selects the delivery channel: dry-run logs only, a webhook URL
// routes to Discord, otherwise a local desktop notification.
func NewSender(webhookURL string, dryRun bool, logger *slog.Logger) Sender {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case dryRun:
		return &LogSender{logger: logger}
	case webhookURL != "":
		return NewDiscordSender(webhookURL, logger)
	default:
		return NewDesktopSender(logger)
	}
}

// --------------------------------------------------------------------------
// Discord
// --------------------------------------------------------------------------

// DiscordSender posts plain-content messages to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDiscordSender(webhookURL string, logger *slog.Logger) *DiscordSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (s *DiscordSender) Name() string { return "discord" }

type webhookPayload struct {
	Content string `json:"content"`
}

// DiscordContent renders the title and body into a single content field.
func DiscordContent(message, title string) string {
	if title == "" {
		title = DefaultTitle
	}
	return fmt.Sprintf("**[%s]**\n%s", title, message)
}

func (s *DiscordSender) Send(ctx context.Context, message, title string) bool {
	if err := s.post(ctx, DiscordContent(message, title)); err != nil {
		s.logger.Warn("discord send failed", "title", title, "error", err)
		return false
	}
	return true
}

func (s *DiscordSender) post(ctx context.Context, content string) error {
	data, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		s.logger.Warn("discord: rate limited", "retry_after", resp.Header.Get("Retry-After"))
		return fmt.Errorf("discord rate limited")
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord webhook: status=%d body=%s", resp.StatusCode, body)
	}
	return nil
}

// --------------------------------------------------------------------------
// Desktop
// --------------------------------------------------------------------------

// Runner executes an external command. Swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) error

func execRunner(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DesktopSender raises a macOS notification through osascript.
type DesktopSender struct {
	Sound  string
	run    Runner
	logger *slog.Logger
}

func NewDesktopSender(logger *slog.Logger) *DesktopSender {
	return NewDesktopSenderWithRunner(execRunner, logger)
}

func NewDesktopSenderWithRunner(run Runner, logger *slog.Logger) *DesktopSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DesktopSender{Sound: "default", run: run, logger: logger}
}

func (s *DesktopSender) Name() string { return "desktop" }

// DesktopScript builds the AppleScript statement for one notification.
func DesktopScript(message, title, sound string) string {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return fmt.Sprintf(`display notification "%s" with title "%s" sound name "%s"`,
		esc.Replace(message), esc.Replace(title), esc.Replace(sound))
}

func (s *DesktopSender) Send(ctx context.Context, message, title string) bool {
	if title == "" {
		title = DefaultTitle
	}
	if err := s.run(ctx, "osascript", "-e", DesktopScript(message, title, s.Sound)); err != nil {
		s.logger.Warn("desktop notification failed", "title", title, "error", err)
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Dry run
// --------------------------------------------------------------------------

// LogSender only logs. Used for dry runs.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, message, title string) bool {
	s.logger.Info("notification (dry run)", "title", title, "message", strings.ReplaceAll(message, "\n", " | "))
	return true
}
