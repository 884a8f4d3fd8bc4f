// Package fetch provides the retrying HTTP client used for every upstream
// page. The upstream serves browser markup and rejects clients without a
// browser User-Agent, so every request carries one.
//
// Failures never escape as panics: callers receive either the body or an
// error wrapping ErrFetchFailed.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/albapepper/racewatch/internal/metrics"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultBackoff    = 2 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	maxBodyBytes = 8 << 20
)

// ErrFetchFailed is returned once every attempt for a URL has failed.
var ErrFetchFailed = errors.New("fetch failed")

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Config controls retry and pacing behaviour. Zero values take defaults.
type Config struct {
	MaxRetries        int
	Timeout           time.Duration
	Backoff           time.Duration
	UserAgent         string
	RequestsPerMinute int // 0 disables pacing
	HTTPClient        *http.Client
}

// Client performs GET requests with a fixed retry budget.
type Client struct {
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a retrying client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
	if cfg.RequestsPerMinute > 0 {
		rps := float64(cfg.RequestsPerMinute) / 60.0
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

// Get fetches url, retrying transport errors and non-2xx statuses up to the
// configured attempt count with a fixed pause between attempts.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, err := c.attempt(ctx, url)
		if err == nil {
			metrics.FetchAttempts.WithLabelValues("ok").Inc()
			return body, nil
		}
		lastErr = err

		c.logger.Warn("fetch attempt failed",
			"url", url, "attempt", attempt, "max", c.maxRetries, "error", err)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, ctx.Err())
		}
		if attempt == c.maxRetries {
			break
		}

		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrFetchFailed, url, ctx.Err())
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrFetchFailed, url, c.maxRetries, lastErr)
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FetchAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.FetchAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.FetchAttempts.WithLabelValues("status").Inc()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
