package middleware

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// LimiterPair holds both normal and cached tier limiters for an IP.
// The normal tier covers fresh grid computations, the cached tier only
// admits requests that can be answered from cache.
type LimiterPair struct {
	Normal *rate.Limiter
	Cached *rate.Limiter
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP
type IPRateLimiter struct {
	mu          sync.Mutex
	ips         map[string]*LimiterPair
	normalRate  rate.Limit
	normalBurst int
	cachedRate  rate.Limit
	cachedBurst int
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		normalRate:  normalRate,
		normalBurst: normalBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
	}
}

// GetNormalLimit returns the normal tier burst limit
func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

// GetCachedLimit returns the cached tier burst limit
func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

// GetLimiter returns the limiter pair for an IP, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	if pair, ok := i.ips[ip]; ok {
		return pair
	}

	pair := &LimiterPair{
		Normal: rate.NewLimiter(i.normalRate, i.normalBurst),
		Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
	}
	i.ips[ip] = pair
	return pair
}
