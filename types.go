package main

import (
	"sync"
	"time"

	"github.com/ptnghia-j/ChordMiniApp-sub001/cache"
	"github.com/ptnghia-j/ChordMiniApp-sub001/chordgrid"
)

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// CacheDump represents the full cache contents
type CacheDump map[string]cache.Entry

// CachePerformance contains cache hit/miss statistics
type CachePerformance struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	NegativeHits int64   `json:"negative_hits"`
	StaleHits    int64   `json:"stale_hits"`
	HitRate      float64 `json:"hit_rate_percent"`
}

// CacheDumpResponse is the response format for the /cache endpoint
type CacheDumpResponse struct {
	NumberOfKeys int              `json:"number_of_keys"`
	SizeInKB     int              `json:"size_kb"`
	SizeHuman    string           `json:"size_human"`
	Performance  CachePerformance `json:"performance"`
	Cache        CacheDump        `json:"cache"`
}

// InFlightRequest tracks concurrent requests for the same grid so only
// one of them hits the analysis backend.
type InFlightRequest struct {
	wg     sync.WaitGroup
	result string
	err    error
}

// CachedGrid is the envelope stored in the grid cache and returned by
// GET /gridData.
type CachedGrid struct {
	VideoID  string             `json:"videoId"`
	Model    string             `json:"model"`
	Grid     chordgrid.GridData `json:"grid"`
	CachedAt time.Time          `json:"cachedAt"`
}

// NegativeCacheEntry stores info about definitive "no analysis" answers
type NegativeCacheEntry struct {
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}
