// Package handler provides HTTP handlers for the monitor status API.
// Responses are JSON; the events snapshot is served through the ETag cache.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/albapepper/racewatch/internal/api/respond"
	"github.com/albapepper/racewatch/internal/cache"
	"github.com/albapepper/racewatch/internal/history"
	"github.com/albapepper/racewatch/internal/monitor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// SnapshotSource exposes the monitor state.
type SnapshotSource interface {
	Snapshot() monitor.Snapshot
}

// HistoryReader reads recent notification records.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	snapshots SnapshotSource
	history   HistoryReader
	cache     *cache.Cache
	started   time.Time
}

// New creates a Handler. hist may be nil when no readable sink is configured.
func New(snapshots SnapshotSource, hist HistoryReader, c *cache.Cache) *Handler {
	return &Handler{snapshots: snapshots, history: hist, cache: c, started: time.Now()}
}

// Root serves API info at /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"name":   "racewatch monitor",
		"status": "running",
		"routes": []string{"/health", "/api/v1/events", "/api/v1/history", "/metrics"},
	})
}

// HealthCheck returns basic health status.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetEvents returns the monitor snapshot.
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "events", cache.TTLEvents, func() (interface{}, error) {
		return h.snapshots.Snapshot(), nil
	})
}

// GetHistory returns recent notification records, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respond.Error(w, r, http.StatusNotFound, "HISTORY_DISABLED", "No readable history sink is configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respond.Error(w, r, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	h.serveCached(w, r, "history:"+strconv.Itoa(limit), cache.TTLHistory, func() (interface{}, error) {
		records, err := h.history.Recent(r.Context(), limit)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"records": records, "count": len(records)}, nil
	})
}

// serveCached answers from cache when fresh, honouring If-None-Match.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, build func() (interface{}, error)) {
	if e, ok := h.cache.Get(key); ok {
		writeEntry(w, r, e, ttl, true)
		return
	}

	v, err := build()
	if err != nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "ENCODE_FAILED", err.Error())
		return
	}
	writeEntry(w, r, h.cache.Put(key, data, ttl), ttl, false)
}

func writeEntry(w http.ResponseWriter, r *http.Request, e cache.Entry, ttl time.Duration, hit bool) {
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), e.ETag) {
		respond.NotModified(w, e.ETag)
		return
	}
	respond.Cached(w, e.Data, e.ETag, ttl, hit)
}
