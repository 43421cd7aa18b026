package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/ptnghia-j/ChordMiniApp-sub001/cache"
	"github.com/ptnghia-j/ChordMiniApp-sub001/chordgrid"
	"github.com/ptnghia-j/ChordMiniApp-sub001/circuitbreaker"
	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
	"github.com/ptnghia-j/ChordMiniApp-sub001/services/analysis"
	"github.com/ptnghia-j/ChordMiniApp-sub001/stats"
)

const maxAnalysisBodyBytes = 10 << 20 // 10 MB

// getGridData serves the cache-first grid lookup:
// cache hit -> negative cache -> in-flight dedupe -> backend fetch,
// with stale fallback to grids computed under other models.
func getGridData(w http.ResponseWriter, r *http.Request) {
	videoID := r.URL.Query().Get("videoId")
	if videoID == "" {
		videoID = r.URL.Query().Get("v")
	}
	if videoID == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, "Video ID not provided")
		return
	}
	model := r.URL.Query().Get("model")
	if model == "" {
		model = conf.Configuration.DefaultChordModel
	}
	cacheKey := buildGridCacheKey(videoID, model)

	if raw, ok := getCachedGrid(cacheKey); ok {
		stats.Get().RecordCacheHit()
		Respond(w, r).SetCacheStatus("HIT").JSON(json.RawMessage(raw))
		return
	}
	stats.Get().RecordCacheMiss()

	if entry, ok := getNegativeCacheEntry(videoID); ok {
		stats.Get().RecordNegativeCacheHit()
		log.Infof("%s Negative cache hit for %s: %s", logcolors.LogCacheNegative, videoID, entry.Reason)
		Respond(w, r).SetCacheStatus("NEGATIVE_HIT").Error(http.StatusNotFound, entry.Reason)
		return
	}

	if cacheOnly, _ := r.Context().Value(cacheOnlyModeKey).(bool); cacheOnly {
		Respond(w, r).
			Header("Retry-After", "60").
			Error(http.StatusTooManyRequests, "Rate limit exceeded; grid not cached. Try again later.")
		return
	}

	// Coalesce concurrent misses for the same key into one backend fetch.
	flight := &InFlightRequest{}
	flight.wg.Add(1)
	if existing, loaded := inFlightReqs.LoadOrStore(cacheKey, flight); loaded {
		flight.wg.Done()
		req := existing.(*InFlightRequest)
		log.Infof("%s Waiting on in-flight fetch for %s", logcolors.LogGrid, cacheKey)
		req.wg.Wait()
		if req.err != nil {
			respondFetchError(w, r, videoID, req.err)
			return
		}
		Respond(w, r).SetCacheStatus("HIT").JSON(json.RawMessage(req.result))
		return
	}

	envelope, err := fetchAndBuildGrid(r, videoID, model, cacheKey)
	if err != nil {
		flight.err = err
		flight.wg.Done()
		inFlightReqs.Delete(cacheKey)

		if raw, key, ok := findStaleGrid(videoID, cacheKey); ok {
			stats.Get().RecordStaleCacheHit()
			log.Warnf("%s Serving stale grid %s after fetch failure: %v", logcolors.LogFallback, key, err)
			Respond(w, r).SetCacheStatus("STALE").JSON(json.RawMessage(raw))
			return
		}
		respondFetchError(w, r, videoID, err)
		return
	}

	flight.result = envelope
	flight.wg.Done()
	// Keep the entry briefly so waiters that lost the race to Wait still
	// observe the result through the map.
	time.AfterFunc(2*time.Second, func() { inFlightReqs.Delete(cacheKey) })

	Respond(w, r).SetCacheStatus("MISS").JSON(json.RawMessage(envelope))
}

// fetchAndBuildGrid pulls the analysis from the backend, builds the aligned
// grid, caches the envelope and returns its raw JSON.
func fetchAndBuildGrid(r *http.Request, videoID, model, cacheKey string) (string, error) {
	result, err := analysisClient.FetchAnalysis(r.Context(), videoID, model)
	if err != nil {
		if shouldNegativeCache(err) {
			setNegativeCacheEntry(videoID, fmt.Sprintf("No analysis available for video %s", videoID))
		}
		return "", err
	}

	grid := chordgrid.BuildGrid(*result)
	envelope := CachedGrid{
		VideoID:  videoID,
		Model:    model,
		Grid:     grid,
		CachedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshaling grid envelope: %w", err)
	}
	setCachedGrid(cacheKey, envelope)
	log.Infof("%s Built grid for %s (model %s): %d cells, padding %d, shift %d",
		logcolors.LogGrid, videoID, model, len(grid.Chords), grid.PaddingCount, grid.ShiftCount)
	return string(raw), nil
}

func findStaleGrid(videoID, currentKey string) (raw, key string, ok bool) {
	for _, fallbackKey := range buildFallbackCacheKeys(videoID, currentKey) {
		if cached, found := getCachedGrid(fallbackKey); found {
			return cached, fallbackKey, true
		}
	}
	return "", "", false
}

func respondFetchError(w http.ResponseWriter, r *http.Request, videoID string, err error) {
	switch {
	case errors.Is(err, analysis.ErrNoAnalysis):
		Respond(w, r).Error(http.StatusNotFound, fmt.Sprintf("No analysis available for video %s", videoID))
	case errors.Is(err, analysis.ErrNotConfigured):
		Respond(w, r).Error(http.StatusServiceUnavailable, "Analysis backend is not configured")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		_, _, retryIn := analysisClient.BreakerStats()
		Respond(w, r).
			Header("Retry-After", strconv.Itoa(int(retryIn.Seconds())+1)).
			Error(http.StatusServiceUnavailable, "Analysis backend temporarily unavailable")
	default:
		log.Errorf("%s Analysis fetch failed for %s: %v", logcolors.LogAnalysis, videoID, err)
		Respond(w, r).Error(http.StatusBadGateway, "Failed to fetch analysis from backend")
	}
}

// computeGridData builds a grid directly from an analysis result supplied in
// the request body, bypassing the backend. Useful for clients that already
// hold a recognition result.
func computeGridData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAnalysisBodyBytes)
	var result chordgrid.AnalysisResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		Respond(w, r).Error(http.StatusBadRequest, fmt.Sprintf("Invalid analysis payload: %v", err))
		return
	}

	grid := chordgrid.BuildGrid(result)

	// Optionally cache under a caller-supplied video ID.
	if videoID := r.URL.Query().Get("videoId"); videoID != "" && len(grid.Chords) > 0 {
		model := result.ChordModel
		if model == "" {
			model = conf.Configuration.DefaultChordModel
		}
		setCachedGrid(buildGridCacheKey(videoID, model), CachedGrid{
			VideoID:  videoID,
			Model:    model,
			Grid:     grid,
			CachedAt: time.Now().UTC(),
		})
	}

	Respond(w, r).JSON(grid)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	token := conf.Configuration.AdminAccessToken
	if token == "" || r.Header.Get("Authorization") != token {
		Respond(w, r).Error(http.StatusUnauthorized, "Unauthorized")
		return false
	}
	return true
}

// getCacheDump returns all cache contents with performance stats (admin only)
func getCacheDump(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	dump := make(CacheDump)
	gridCache.Range(func(key string, entry cache.Entry) bool {
		dump[key] = entry
		return true
	})
	numKeys, sizeKB := gridCache.Stats()
	st := stats.Get()
	Respond(w, r).JSON(CacheDumpResponse{
		NumberOfKeys: numKeys,
		SizeInKB:     sizeKB,
		SizeHuman:    humanize.Bytes(uint64(sizeKB) * 1024),
		Performance: CachePerformance{
			Hits:         st.CacheHits.Load(),
			Misses:       st.CacheMisses.Load(),
			NegativeHits: st.NegativeCacheHits.Load(),
			StaleHits:    st.StaleCacheHits.Load(),
			HitRate:      st.CacheHitRate(),
		},
		Cache: dump,
	})
}

// backupCache creates a timestamped backup of the cache database; pass
// ?clear=true to also clear the live cache afterwards (admin only).
func backupCache(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	var (
		backupPath string
		err        error
	)
	cleared := r.URL.Query().Get("clear") == "true"
	if cleared {
		backupPath, err = gridCache.BackupAndClear()
	} else {
		backupPath, err = gridCache.Backup()
	}
	if err != nil {
		log.Errorf("%s Backup failed: %v", logcolors.LogCacheBackup, err)
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Backup failed: %v", err))
		return
	}
	Respond(w, r).JSON(map[string]interface{}{
		"message":    "Backup created",
		"backupPath": backupPath,
		"cleared":    cleared,
	})
}

// listBackups returns the available backup files, newest first (admin only)
func listBackups(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	backups, err := gridCache.ListBackups()
	if err != nil {
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Failed to list backups: %v", err))
		return
	}
	Respond(w, r).JSON(map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

// restoreCache replaces the live cache with a named backup (admin only)
func restoreCache(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	fileName := r.URL.Query().Get("file")
	if fileName == "" {
		Respond(w, r).Error(http.StatusUnprocessableEntity, "Backup file name not provided")
		return
	}
	if err := gridCache.RestoreFromBackup(fileName); err != nil {
		log.Errorf("%s Restore failed: %v", logcolors.LogCacheRestore, err)
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Restore failed: %v", err))
		return
	}
	numKeys, _ := gridCache.Stats()
	Respond(w, r).JSON(map[string]interface{}{
		"message":      "Cache restored",
		"restoredFrom": fileName,
		"numberOfKeys": numKeys,
	})
}

// clearCache empties the cache without creating a backup (admin only)
func clearCache(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	numKeys, _ := gridCache.Stats()
	if err := gridCache.Clear(); err != nil {
		Respond(w, r).Error(http.StatusInternalServerError, fmt.Sprintf("Clear failed: %v", err))
		return
	}
	log.Infof("%s Cache cleared (%d keys removed)", logcolors.LogCacheClear, numKeys)
	Respond(w, r).JSON(map[string]interface{}{
		"message":     "Cache cleared",
		"keysRemoved": numKeys,
	})
}

// getStats returns server statistics
func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	numKeys, sizeKB := gridCache.Stats()
	snapshot["cache_storage"] = map[string]interface{}{
		"keys":       numKeys,
		"size_kb":    sizeKB,
		"size_human": humanize.Bytes(uint64(sizeKB) * 1024),
	}

	state, failures, retryIn := analysisClient.BreakerStats()
	snapshot["circuit_breaker"] = map[string]interface{}{
		"state":          state,
		"failures":       failures,
		"retry_in_secs":  int(retryIn.Seconds()),
		"backend_set_up": analysisClient.Configured(),
	}

	Respond(w, r).JSON(snapshot)
}

// getHealthStatus reports liveness plus backend circuit state
func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	state, _, _ := analysisClient.BreakerStats()
	status := "ok"
	if !analysisClient.Configured() || state == "OPEN" {
		status = "degraded"
	}
	Respond(w, r).JSON(map[string]interface{}{
		"status":          status,
		"uptime":          stats.Get().Uptime().Round(time.Second).String(),
		"backend":         state,
		"backend_set_up":  analysisClient.Configured(),
		"cache_available": gridCache != nil,
	})
}

// getCircuitBreakerStatus returns the current breaker state (admin only)
func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	state, failures, retryIn := analysisClient.BreakerStats()
	Respond(w, r).JSON(map[string]interface{}{
		"state":         state,
		"failures":      failures,
		"retry_in_secs": int(retryIn.Seconds()),
	})
}

// resetCircuitBreaker closes the breaker manually (admin only)
func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	analysisClient.ResetBreaker()
	log.Infof("%s Circuit breaker manually reset", logcolors.CircuitBreakerPrefix("analysis"))
	Respond(w, r).JSON(map[string]string{"message": "Circuit breaker reset"})
}

// simulateCircuitBreakerFailure records one synthetic failure (admin only)
func simulateCircuitBreakerFailure(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	analysisClient.SimulateFailure()
	state, failures, _ := analysisClient.BreakerStats()
	Respond(w, r).JSON(map[string]interface{}{
		"message":  "Failure recorded",
		"state":    state,
		"failures": failures,
	})
}

// helpHandler lists the available endpoints
func helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).Text(`Chord Grid API

GET  /gridData?videoId=<id>[&model=<model>]  Fetch (or compute and cache) the aligned chord grid
POST /gridData[?videoId=<id>]                Compute a grid from an analysis result in the body
GET  /health                                 Service health and backend circuit state
GET  /stats                                  Server statistics

Admin (Authorization header required):
GET  /cache                                  Dump cache contents and performance
GET  /cache/backup[?clear=true]              Create a backup (optionally clear after)
GET  /cache/backups                          List available backups
GET  /cache/restore?file=<name>              Restore from a backup
GET  /cache/clear                            Clear the cache
GET  /circuit-breaker                        Circuit breaker status
GET  /circuit-breaker/reset                  Reset the circuit breaker
GET  /circuit-breaker/simulate-failure       Record a synthetic failure
`)
}
