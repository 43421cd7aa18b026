package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
)

const (
	statsBucketName = "stats"
	statsKey        = "server_stats"
)

// Store persists the counters to a dedicated BoltDB file so they
// accumulate across restarts.
type Store struct {
	db       *bolt.DB
	dbPath   string
	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// PersistedStats is the on-disk snapshot of the cumulative counters.
type PersistedStats struct {
	TotalRequests     int64 `json:"total_requests"`
	GridRequests      int64 `json:"grid_requests"`
	CacheRequests     int64 `json:"cache_requests"`
	StatsRequests     int64 `json:"stats_requests"`
	HealthRequests    int64 `json:"health_requests"`
	OtherRequests     int64 `json:"other_requests"`
	CacheHits         int64 `json:"cache_hits"`
	CacheMisses       int64 `json:"cache_misses"`
	NegativeCacheHits int64 `json:"negative_cache_hits"`
	StaleCacheHits    int64 `json:"stale_cache_hits"`
	AnalysisFetches   int64 `json:"analysis_fetches"`
	AnalysisFailures  int64 `json:"analysis_failures"`
	RateLimitNormal   int64 `json:"rate_limit_normal"`
	RateLimitCached   int64 `json:"rate_limit_cached"`
	RateLimitExceeded int64 `json:"rate_limit_exceeded"`
	Status2xx         int64 `json:"status_2xx"`
	Status4xx         int64 `json:"status_4xx"`
	Status5xx         int64 `json:"status_5xx"`

	TotalResponseTime int64 `json:"total_response_time"`
	ResponseCount     int64 `json:"response_count"`
	MinResponseTime   int64 `json:"min_response_time"`
	MaxResponseTime   int64 `json:"max_response_time"`
	GridResponseTime  int64 `json:"grid_response_time"`
	GridResponseCount int64 `json:"grid_response_count"`

	LastSaved    time.Time `json:"last_saved"`
	FirstStarted time.Time `json:"first_started"`
}

// NewStore creates a stats store with a dedicated BoltDB file.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %v", err)
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(statsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats bucket: %v", err)
	}

	store := &Store{
		db:       db,
		dbPath:   dbPath,
		stopChan: make(chan struct{}),
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, dbPath)
	return store, nil
}

// Load reads persisted stats from disk and applies them to the global stats
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var persisted PersistedStats
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(statsKey))
		if data == nil {
			return nil // No persisted stats yet
		}
		return json.Unmarshal(data, &persisted)
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %v", err)
	}

	stats := Get()

	stats.TotalRequests.Store(persisted.TotalRequests)
	stats.GridRequests.Store(persisted.GridRequests)
	stats.CacheRequests.Store(persisted.CacheRequests)
	stats.StatsRequests.Store(persisted.StatsRequests)
	stats.HealthRequests.Store(persisted.HealthRequests)
	stats.OtherRequests.Store(persisted.OtherRequests)
	stats.CacheHits.Store(persisted.CacheHits)
	stats.CacheMisses.Store(persisted.CacheMisses)
	stats.NegativeCacheHits.Store(persisted.NegativeCacheHits)
	stats.StaleCacheHits.Store(persisted.StaleCacheHits)
	stats.AnalysisFetches.Store(persisted.AnalysisFetches)
	stats.AnalysisFailures.Store(persisted.AnalysisFailures)
	stats.RateLimitNormal.Store(persisted.RateLimitNormal)
	stats.RateLimitCached.Store(persisted.RateLimitCached)
	stats.RateLimitExceeded.Store(persisted.RateLimitExceeded)
	stats.Status2xx.Store(persisted.Status2xx)
	stats.Status4xx.Store(persisted.Status4xx)
	stats.Status5xx.Store(persisted.Status5xx)
	stats.totalResponseTime.Store(persisted.TotalResponseTime)
	stats.responseCount.Store(persisted.ResponseCount)
	stats.gridResponseTime.Store(persisted.GridResponseTime)
	stats.gridResponseCount.Store(persisted.GridResponseCount)

	if persisted.MinResponseTime > 0 && persisted.MinResponseTime < int64(^uint64(0)>>1) {
		stats.minResponseTime.Store(persisted.MinResponseTime)
	}
	if persisted.MaxResponseTime > 0 {
		stats.maxResponseTime.Store(persisted.MaxResponseTime)
	}

	// Preserve the original first start time if available
	if !persisted.FirstStarted.IsZero() {
		stats.StartTime = persisted.FirstStarted
	}

	log.Infof("%s Loaded persisted stats (total requests: %d, first started: %s)",
		logcolors.LogStats, persisted.TotalRequests, persisted.FirstStarted.Format(time.RFC3339))

	return nil
}

// Save persists current stats to disk
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Get()

	persisted := PersistedStats{
		TotalRequests:     stats.TotalRequests.Load(),
		GridRequests:      stats.GridRequests.Load(),
		CacheRequests:     stats.CacheRequests.Load(),
		StatsRequests:     stats.StatsRequests.Load(),
		HealthRequests:    stats.HealthRequests.Load(),
		OtherRequests:     stats.OtherRequests.Load(),
		CacheHits:         stats.CacheHits.Load(),
		CacheMisses:       stats.CacheMisses.Load(),
		NegativeCacheHits: stats.NegativeCacheHits.Load(),
		StaleCacheHits:    stats.StaleCacheHits.Load(),
		AnalysisFetches:   stats.AnalysisFetches.Load(),
		AnalysisFailures:  stats.AnalysisFailures.Load(),
		RateLimitNormal:   stats.RateLimitNormal.Load(),
		RateLimitCached:   stats.RateLimitCached.Load(),
		RateLimitExceeded: stats.RateLimitExceeded.Load(),
		Status2xx:         stats.Status2xx.Load(),
		Status4xx:         stats.Status4xx.Load(),
		Status5xx:         stats.Status5xx.Load(),
		TotalResponseTime: stats.totalResponseTime.Load(),
		ResponseCount:     stats.responseCount.Load(),
		MinResponseTime:   stats.minResponseTime.Load(),
		MaxResponseTime:   stats.maxResponseTime.Load(),
		GridResponseTime:  stats.gridResponseTime.Load(),
		GridResponseCount: stats.gridResponseCount.Load(),
		LastSaved:         time.Now(),
		FirstStarted:      stats.StartTime,
	}

	data, err := json.Marshal(persisted)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %v", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(statsBucketName))
		if b == nil {
			return fmt.Errorf("stats bucket not found")
		}
		return b.Put([]byte(statsKey), data)
	})
}

// StartAutoSave persists stats at the given interval until Stop is called.
func (s *Store) StartAutoSave(interval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Failed to persist stats: %v", logcolors.LogStats, err)
				}
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts auto-saving, saves once more, and closes the database.
func (s *Store) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Failed to persist stats on shutdown: %v", logcolors.LogStats, err)
	}
	return s.db.Close()
}
