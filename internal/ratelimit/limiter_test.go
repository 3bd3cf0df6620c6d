package ratelimit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/ratelimit"
)

// fakeClock is a manually-advanced domain.Clock for deterministic window
// tests — no sleeping.
type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestLimiter_BoundedTier_AllowsUpToQuota(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierStarter] // maxQueriesPerHour = 5

	for i := 0; i < 5; i++ {
		d := l.Check(1, tier, false)
		if !d.Allow {
			t.Fatalf("request %d: expected allow, got deny: %s", i+1, d.Message)
		}
	}

	d := l.Check(1, tier, false)
	if d.Allow {
		t.Fatal("6th request within the hour should be denied")
	}
	if !strings.Contains(d.Message, "professional") {
		t.Errorf("expected upgrade suggestion in deny message, got: %q", d.Message)
	}
}

func TestLimiter_BoundedTier_WindowSlides(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierStarter]

	for i := 0; i < 5; i++ {
		l.Check(1, tier, false)
	}
	if l.Check(1, tier, false).Allow {
		t.Fatal("expected deny at quota")
	}

	clk.advance(61 * time.Minute)

	d := l.Check(1, tier, false)
	if !d.Allow {
		t.Fatal("expected allow once the hour window has fully rolled over")
	}
}

func TestLimiter_FreeFollowup_DoesNotConsumeBoundedQuota(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierStarter]

	for i := 0; i < 5; i++ {
		l.Check(1, tier, false)
	}

	// Free follow-ups should never be denied and should not be recorded.
	for i := 0; i < 10; i++ {
		if !l.Check(1, tier, true).Allow {
			t.Fatalf("free follow-up %d unexpectedly denied", i)
		}
	}

	if l.Check(1, tier, false).Allow {
		t.Fatal("a real (non-free) request should still be denied after the quota was hit")
	}
}

func TestLimiter_UnboundedTier_EnforcesSpamCapOnly(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierEnterprise] // unbounded hourly, 60/min spam cap

	for i := 0; i < 60; i++ {
		if !l.Check(42, tier, false).Allow {
			t.Fatalf("request %d should be allowed under the spam cap", i+1)
		}
	}

	d := l.Check(42, tier, false)
	if d.Allow {
		t.Fatal("61st request within the minute should be denied")
	}
	if !strings.Contains(strings.ToLower(d.Message), "rapid succession") {
		t.Errorf("expected rapid-succession message, got: %q", d.Message)
	}
}

func TestLimiter_UnboundedTier_FreeFollowupStillCountsAgainstSpamCap(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierEnterprise]

	for i := 0; i < 60; i++ {
		if !l.Check(7, tier, true).Allow {
			t.Fatalf("free follow-up %d should be allowed under the spam cap", i+1)
		}
	}

	if l.Check(7, tier, true).Allow {
		t.Fatal("free follow-ups still must be capped for the unbounded tier")
	}
}

func TestLimiter_DifferentUsers_IndependentWindows(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimit.New(clk)
	tier := domain.Tiers[domain.TierStarter]

	for i := 0; i < 5; i++ {
		l.Check(1, tier, false)
	}
	if l.Check(1, tier, false).Allow {
		t.Fatal("user 1 should be at quota")
	}
	if !l.Check(2, tier, false).Allow {
		t.Fatal("user 2 should be unaffected by user 1's quota")
	}
}
