// Package cache holds encoded status API responses for a short TTL so
// repeated polls can be answered with 304s.
package cache

import (
	"context"
	"crypto/md5"
	"fmt"
	"strings"
	"sync"
	"time"
)

// TTLs per response kind.
const (
	TTLEvents  = 5 * time.Second  // minutes_left drifts every poll
	TTLHistory = 30 * time.Second // append-only log
)

const evictInterval = time.Minute

// Entry is one encoded response.
type Entry struct {
	Data    []byte
	ETag    string
	expires time.Time
}

// Stats is reported on /health.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache is safe for concurrent use. A disabled cache stores nothing but
// still computes ETags.
type Cache struct {
	enabled bool
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
	hits    uint64
	misses  uint64
}

func New(enabled bool) *Cache {
	return &Cache{enabled: enabled, now: time.Now, entries: map[string]Entry{}}
}

// Run drops expired entries every minute until ctx is cancelled.
func (c *Cache) Run(ctx context.Context) {
	if !c.enabled {
		return
	}
	t := time.NewTicker(evictInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.mu.Lock()
			now := c.now()
			for k, e := range c.entries {
				if !now.Before(e.expires) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Get returns the live entry for key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		c.misses++
		return Entry{}, false
	}
	c.hits++
	return e, true
}

// Put stores data under key for ttl and returns the entry.
func (c *Cache) Put(key string, data []byte, ttl time.Duration) Entry {
	e := Entry{Data: data, ETag: ComputeETag(data), expires: c.now().Add(ttl)}
	if !c.enabled {
		return e
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return e
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Enabled: c.enabled, Entries: len(c.entries), Hits: c.hits, Misses: c.misses}
}

// ComputeETag returns a weak validator for data.
func ComputeETag(data []byte) string {
	sum := md5.Sum(data)
	return fmt.Sprintf(`W/"%x"`, sum[:8])
}

// CheckETagMatch reports whether an If-None-Match value names etag, either
// directly, in a comma-separated list, or through "*".
func CheckETagMatch(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		switch strings.TrimSpace(candidate) {
		case "*", etag:
			return true
		}
	}
	return false
}
