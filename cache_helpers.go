package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
	"github.com/ptnghia-j/ChordMiniApp-sub001/services/analysis"
)

const (
	gridKeyPrefix     = "grid:"
	negativeKeyPrefix = "no_analysis:"
)

// knownChordModels lists the recognition models the analysis backend can
// run. Used to probe for grids computed under a different model when the
// backend is unavailable.
var knownChordModels = []string{"chord-cnn-lstm", "btc-sl", "btc-pl"}

func buildGridCacheKey(videoID, model string) string {
	return fmt.Sprintf("%s%s:%s", gridKeyPrefix, strings.TrimSpace(videoID), model)
}

func buildNegativeCacheKey(videoID string) string {
	return negativeKeyPrefix + strings.TrimSpace(videoID)
}

// buildFallbackCacheKeys returns grid keys for the same video under other
// models, used as stale fallbacks when the backend cannot be reached.
func buildFallbackCacheKeys(videoID, currentKey string) []string {
	keys := make([]string, 0, len(knownChordModels))
	for _, model := range knownChordModels {
		key := buildGridCacheKey(videoID, model)
		if key != currentKey {
			keys = append(keys, key)
		}
	}
	return keys
}

// getCachedGrid returns the raw cached envelope JSON for the key, if present.
func getCachedGrid(key string) (string, bool) {
	if gridCache == nil {
		return "", false
	}
	return gridCache.Get(key)
}

func setCachedGrid(key string, envelope CachedGrid) {
	if gridCache == nil {
		return
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		log.Errorf("%s Failed to marshal grid for caching: %v", logcolors.LogCacheGrid, err)
		return
	}
	if err := gridCache.Set(key, string(raw)); err != nil {
		log.Errorf("%s Failed to cache grid %s: %v", logcolors.LogCacheGrid, key, err)
	}
}

// getNegativeCacheEntry returns a still-valid negative entry for the video,
// expiring entries older than the configured TTL.
func getNegativeCacheEntry(videoID string) (NegativeCacheEntry, bool) {
	if gridCache == nil {
		return NegativeCacheEntry{}, false
	}
	key := buildNegativeCacheKey(videoID)
	raw, ok := gridCache.Get(key)
	if !ok {
		return NegativeCacheEntry{}, false
	}
	var entry NegativeCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		log.Warnf("%s Dropping malformed negative cache entry %s: %v", logcolors.LogCacheNegative, key, err)
		_ = gridCache.Delete(key)
		return NegativeCacheEntry{}, false
	}
	ttl := time.Duration(conf.Configuration.NegativeCacheTTLInDays) * 24 * time.Hour
	if time.Since(time.Unix(entry.Timestamp, 0)) > ttl {
		log.Infof("%s Negative cache entry expired for %s", logcolors.LogCacheNegative, videoID)
		_ = gridCache.Delete(key)
		return NegativeCacheEntry{}, false
	}
	return entry, true
}

func setNegativeCacheEntry(videoID, reason string) {
	if gridCache == nil {
		return
	}
	entry := NegativeCacheEntry{Reason: reason, Timestamp: time.Now().Unix()}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := gridCache.Set(buildNegativeCacheKey(videoID), string(raw)); err != nil {
		log.Errorf("%s Failed to store negative cache entry for %s: %v", logcolors.LogCacheNegative, videoID, err)
	}
}

// shouldNegativeCache reports whether a fetch error is definitive enough to
// remember. Transient failures (timeouts, open circuit) are never cached.
func shouldNegativeCache(err error) bool {
	return errors.Is(err, analysis.ErrNoAnalysis)
}
