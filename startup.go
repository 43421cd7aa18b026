package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ptnghia-j/ChordMiniApp-sub001/cache"
	"github.com/ptnghia-j/ChordMiniApp-sub001/circuitbreaker"
	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
	"github.com/ptnghia-j/ChordMiniApp-sub001/middleware"
	"github.com/ptnghia-j/ChordMiniApp-sub001/services/analysis"
	"github.com/ptnghia-j/ChordMiniApp-sub001/stats"
)

const statsAutoSaveInterval = time.Minute

func runServer() error {
	c := conf.Configuration

	var err error
	gridCache, err = cache.NewStore(c.CacheDBPath, c.CacheBackupPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		return fmt.Errorf("initializing grid cache: %w", err)
	}

	statsStore, err = stats.NewStore(c.StatsDBPath)
	if err != nil {
		log.Warnf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
	} else {
		if err := statsStore.Load(); err != nil {
			log.Warnf("%s Could not load persisted stats: %v", logcolors.LogStats, err)
		}
		statsStore.StartAutoSave(statsAutoSaveInterval)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "analysis",
		Threshold: c.CircuitBreakerThreshold,
		Cooldown:  time.Duration(c.CircuitBreakerCooldownSecs) * time.Second,
	})
	analysisClient = analysis.NewClient(c.AnalysisBaseURL, time.Duration(c.AnalysisTimeoutInSeconds)*time.Second, breaker)
	if !analysisClient.Configured() {
		log.Warnf("%s No analysis backend configured; serving cached grids and POST /gridData only", logcolors.LogServer)
	}

	router := mux.NewRouter()
	setupRoutes(router)

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(c.RateLimitPerSecond), c.RateLimitBurstLimit,
		rate.Limit(c.CachedRateLimitPerSecond), c.CachedRateLimitBurstLimit,
	)

	var handler http.Handler = router
	handler = middleware.APIKeyMiddleware(c.APIKey, c.APIKeyRequired, []string{"/health", "/"})(handler)
	handler = limitMiddleware(handler, limiter)
	handler = cors.New(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}).Handler(handler)
	handler = middleware.LoggingMiddleware(handler)

	srv := &http.Server{
		Addr:              ":" + c.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Infof("%s Shutting down", logcolors.LogServer)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("%s Shutdown error: %v", logcolors.LogServer, err)
		}
	}()

	log.Infof("%s Listening on port %s", logcolors.LogServer, c.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if statsStore != nil {
		statsStore.Stop()
	}
	return gridCache.Close()
}

// limitMiddleware applies two-tier per-IP rate limiting. The normal tier
// covers fresh grid computations; once it is exhausted a second, larger
// tier still admits requests that can be answered from cache (the handler
// sees cacheOnlyModeKey and returns 429 on a miss). Requests carrying a
// valid API key bypass limiting entirely.
func limitMiddleware(next http.Handler, limiter *middleware.IPRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if conf.Configuration.APIKey != "" && r.Header.Get("X-API-Key") == conf.Configuration.APIKey {
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "api-key")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		pair := limiter.GetLimiter(clientIP(r))

		if pair.Normal.Allow() {
			stats.Get().RecordRateLimit("normal")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.GetNormalLimit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(pair.GetNormalTokens()))
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "normal")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if pair.Cached.Allow() {
			stats.Get().RecordRateLimit("cached")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.GetCachedLimit()))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(pair.GetCachedTokens()))
			ctx := context.WithValue(r.Context(), rateLimitTypeKey, "cached")
			ctx = context.WithValue(ctx, cacheOnlyModeKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		stats.Get().RecordRateLimit("exceeded")
		log.Warnf("%s Rate limit exceeded for %s", logcolors.LogRateLimit, clientIP(r))
		w.Header().Set("Retry-After", "60")
		Respond(w, r).Error(http.StatusTooManyRequests, "Rate limit exceeded")
	})
}

// clientIP resolves the caller's IP, preferring X-Forwarded-For when the
// service runs behind a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
