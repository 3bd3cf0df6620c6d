// Package ratelimit implements C9: a sliding-window, tier-aware per-user
// quota. It is deliberately modeled after the RateLimiter shape used widely
// across the example corpus (map[userID][]time.Time pruned against a
// window, guarded by one mutex) rather than anything exotic like a token
// bucket — the simplest correct thing that satisfies spec.md's invariant 4.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// Decision is the result of a Check call.
type Decision struct {
	Allow   bool
	Message string
}

// Limiter enforces the sliding-window quota described in spec.md §4.1.
// Safe for concurrent use; Check is a single atomic increment+read per call,
// satisfying the serializable-per-user ordering spec.md §5 requires.
type Limiter struct {
	mu    sync.Mutex
	hours map[int64][]time.Time // non-free request timestamps, hourly window
	spam  map[int64][]time.Time // all request timestamps, minute window (unbounded tiers only)

	clock domain.Clock
}

// New constructs a Limiter. clock is injected so tests can control time
// without sleeping.
func New(clock domain.Clock) *Limiter {
	return &Limiter{
		hours: make(map[int64][]time.Time),
		spam:  make(map[int64][]time.Time),
		clock: clock,
	}
}

// Check enforces the quota for one request and records it if allowed.
// It never panics or returns an error — a deny is communicated entirely
// through the returned Decision, per spec.md's "never throws" contract.
func (l *Limiter) Check(userID int64, tier domain.Tier, isFreeFollowup bool) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if tier.MaxQueriesPerHour == domain.Unbounded {
		return l.checkUnbounded(userID, tier, now)
	}
	return l.checkBounded(userID, tier, now, isFreeFollowup)
}

// checkBounded enforces the hourly cap for starter/professional-style
// tiers. Free follow-ups bypass the cap entirely — they are not recorded
// and do not count against it.
func (l *Limiter) checkBounded(userID int64, tier domain.Tier, now time.Time, isFreeFollowup bool) Decision {
	if isFreeFollowup {
		return Decision{Allow: true}
	}

	window := prune(l.hours[userID], now, domain.SlidingWindow)
	l.hours[userID] = window

	if len(window) >= tier.MaxQueriesPerHour {
		return Decision{
			Allow:   false,
			Message: boundedDenyMessage(tier),
		}
	}

	l.hours[userID] = append(window, now)
	return Decision{Allow: true}
}

// checkUnbounded enforces only the per-minute spam cap (the hourly quota
// doesn't exist for this tier). Every request counts toward the spam
// window, free follow-up or not.
func (l *Limiter) checkUnbounded(userID int64, tier domain.Tier, now time.Time) Decision {
	window := prune(l.spam[userID], now, domain.SpamWindow)

	if tier.SpamWindowCap > 0 && len(window) >= tier.SpamWindowCap {
		l.spam[userID] = window
		return Decision{
			Allow:   false,
			Message: "Too many queries in rapid succession. Please slow down and try again in a minute.",
		}
	}

	l.spam[userID] = append(window, now)
	return Decision{Allow: true}
}

// prune drops timestamps older than window relative to now, preserving
// order. It always returns a fresh slice so callers can safely re-store it.
func prune(records []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	out := make([]time.Time, 0, len(records))
	for _, t := range records {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

func boundedDenyMessage(tier domain.Tier) string {
	upgrade := upgradePath(tier.Name)
	if upgrade == "" {
		return fmt.Sprintf("You've reached your limit of %d queries per hour for the %s plan. Please try again later.",
			tier.MaxQueriesPerHour, tier.Name)
	}
	return fmt.Sprintf("You've reached your limit of %d queries per hour for the %s plan. Upgrade to %s for a higher limit.",
		tier.MaxQueriesPerHour, tier.Name, upgrade)
}

func upgradePath(name domain.TierName) string {
	switch name {
	case domain.TierStarter:
		return "professional"
	case domain.TierProfessional:
		return "enterprise"
	default:
		return ""
	}
}
