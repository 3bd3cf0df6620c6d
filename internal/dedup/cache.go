// Package dedup provides the default in-process implementation of
// domain.DedupCache: a short-lived (1-minute TTL) cross-request cache the
// orchestrator consults before redoing work for a repeated (userID,
// requestID) submission (spec.md §5, §9). It is deliberately separate from
// internal/store's content-hash ConversationStore dedup — that one has no
// TTL and keys on (userID, convID, content), this one is a process-memory
// shortcut keyed on the caller-supplied requestID.
package dedup

import (
	"strconv"
	"sync"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// TTL is how long a cached response remains eligible for replay.
const TTL = time.Minute

type entry struct {
	resp    domain.ChatResponse
	expires time.Time
}

// Cache is the default domain.DedupCache. Safe for concurrent use; modeled
// on internal/ratelimit.Limiter's single-mutex-over-a-map shape.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   domain.Clock
}

// New constructs a Cache. clock is injected so tests can control expiry
// without sleeping.
func New(clock domain.Clock) *Cache {
	return &Cache{entries: make(map[string]entry), clock: clock}
}

func key(userID int64, requestID string) string {
	return strconv.FormatInt(userID, 10) + ":" + requestID
}

// Get returns the cached response for (userID, requestID) if it is still
// within TTL. A requestID of "" never hits — callers without a client-
// supplied requestID get no deduplication, matching spec.md's description
// of requestID as an optional, short-lived shortcut, not a required field.
func (c *Cache) Get(userID int64, requestID string) (domain.ChatResponse, bool) {
	if requestID == "" {
		return domain.ChatResponse{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key(userID, requestID)]
	if !ok {
		return domain.ChatResponse{}, false
	}
	if c.clock.Now().After(e.expires) {
		delete(c.entries, key(userID, requestID))
		return domain.ChatResponse{}, false
	}
	return e.resp, true
}

// Put stores resp for (userID, requestID), replacing any existing entry,
// and opportunistically sweeps expired entries so the map doesn't grow
// unbounded across a long-lived process.
func (c *Cache) Put(userID int64, requestID string, resp domain.ChatResponse) {
	if requestID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.entries[key(userID, requestID)] = entry{resp: resp, expires: now.Add(TTL)}

	for k, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, k)
		}
	}
}
