package middleware

import (
	"testing"

	"golang.org/x/time/rate"
)

func TestGetLimiterCreatesPairPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(2), 5, rate.Limit(10), 20)

	first := limiter.GetLimiter("10.0.0.1:1234")
	if first == nil || first.Normal == nil || first.Cached == nil {
		t.Fatal("expected a fully populated limiter pair")
	}

	second := limiter.GetLimiter("10.0.0.1:1234")
	if first != second {
		t.Error("expected the same pair for the same IP")
	}

	other := limiter.GetLimiter("10.0.0.2:1234")
	if other == first {
		t.Error("expected a distinct pair for a different IP")
	}
}

func TestNormalTierExhaustsBeforeCached(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2, rate.Limit(1), 5)
	pair := limiter.GetLimiter("10.0.0.3:1234")

	// Drain the normal tier burst.
	for i := 0; i < 2; i++ {
		if !pair.Normal.Allow() {
			t.Fatalf("normal tier blocked within burst at request %d", i)
		}
	}
	if pair.Normal.Allow() {
		t.Error("normal tier should be exhausted")
	}

	// Cached tier still has tokens.
	if !pair.Cached.Allow() {
		t.Error("cached tier should still allow requests")
	}
}

func TestTokenCounters(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 3, rate.Limit(1), 7)
	pair := limiter.GetLimiter("10.0.0.4:1234")

	if got := pair.GetNormalTokens(); got != 3 {
		t.Errorf("normal tokens = %d, want 3", got)
	}
	if got := pair.GetCachedTokens(); got != 7 {
		t.Errorf("cached tokens = %d, want 7", got)
	}

	pair.Normal.Allow()
	if got := pair.GetNormalTokens(); got != 2 {
		t.Errorf("normal tokens after one request = %d, want 2", got)
	}
}

func TestLimits(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(2), 5, rate.Limit(10), 20)

	if limiter.GetNormalLimit() != 5 {
		t.Errorf("normal limit = %d, want 5", limiter.GetNormalLimit())
	}
	if limiter.GetCachedLimit() != 20 {
		t.Errorf("cached limit = %d, want 20", limiter.GetCachedLimit())
	}
}
