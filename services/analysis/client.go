package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ptnghia-j/ChordMiniApp-sub001/chordgrid"
	"github.com/ptnghia-j/ChordMiniApp-sub001/circuitbreaker"
	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
	"github.com/ptnghia-j/ChordMiniApp-sub001/stats"
)

const defaultTimeout = 30 * time.Second

var (
	// ErrNoAnalysis means the backend answered but has no analysis for
	// the video. This is a permanent answer, not a backend failure.
	ErrNoAnalysis = errors.New("no analysis available for this video")

	// ErrNotConfigured means no analysis backend URL was provided.
	ErrNotConfigured = errors.New("analysis backend not configured")
)

// Client fetches beat/chord analysis results from the upstream
// analysis backend. All calls go through a circuit breaker so a dead
// backend degrades to the caller's stale-cache path instead of piling
// up timeouts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates an analysis client. A zero timeout falls back to
// the default.
func NewClient(baseURL string, timeout time.Duration, breaker *circuitbreaker.CircuitBreaker) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
	}
}

// FetchAnalysis retrieves the analysis result for a video. The model
// parameter is optional; when empty the backend's default is used.
func (c *Client) FetchAnalysis(ctx context.Context, videoID, model string) (*chordgrid.AnalysisResult, error) {
	if c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if !c.breaker.Allow() {
		return nil, circuitbreaker.ErrCircuitOpen
	}

	requestURL := fmt.Sprintf("%s/api/analysis/%s", c.baseURL, url.PathEscape(videoID))
	if model != "" {
		requestURL += "?model=" + url.QueryEscape(model)
	}

	log.Debugf("%s Fetching analysis: %s (model: %s)", logcolors.LogAnalysis, videoID, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		stats.Get().RecordAnalysisFetch(true)
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	// A 404 is a definitive "nothing to analyze here" answer; it keeps
	// the circuit closed and is negative-cacheable by the caller.
	if resp.StatusCode == http.StatusNotFound {
		c.breaker.RecordSuccess()
		stats.Get().RecordAnalysisFetch(false)
		return nil, fmt.Errorf("%w: %s", ErrNoAnalysis, videoID)
	}

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		stats.Get().RecordAnalysisFetch(true)
		return nil, fmt.Errorf("analysis backend returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		stats.Get().RecordAnalysisFetch(true)
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	var result chordgrid.AnalysisResult
	if err := json.Unmarshal(body, &result); err != nil {
		c.breaker.RecordFailure()
		stats.Get().RecordAnalysisFetch(true)
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}

	c.breaker.RecordSuccess()
	stats.Get().RecordAnalysisFetch(false)
	return &result, nil
}

// Configured reports whether a backend URL is set.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

// BreakerStats exposes the circuit breaker state for health and admin
// endpoints.
func (c *Client) BreakerStats() (state string, failures int, retryIn time.Duration) {
	return c.breaker.State().String(), c.breaker.Failures(), c.breaker.TimeUntilRetry()
}

// ResetBreaker manually closes the circuit.
func (c *Client) ResetBreaker() {
	c.breaker.Reset()
}

// SimulateFailure records a synthetic failure, used by the admin
// endpoint to exercise alerting and state transitions.
func (c *Client) SimulateFailure() {
	c.breaker.RecordFailure()
}
