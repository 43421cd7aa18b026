package main

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
)

// APIResponse provides a fluent interface for writing HTTP responses
// with consistent headers across all endpoints.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	statusCode  int
	cacheStatus string
}

// Respond creates a new APIResponse builder
func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{
		w:          w,
		r:          r,
		statusCode: http.StatusOK,
	}
}

// Status sets the HTTP status code
func (a *APIResponse) Status(code int) *APIResponse {
	a.statusCode = code
	return a
}

// SetCacheStatus sets the X-Cache header value (HIT, MISS, NEGATIVE_HIT, STALE)
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// Header sets an arbitrary response header
func (a *APIResponse) Header(key, value string) *APIResponse {
	a.w.Header().Set(key, value)
	return a
}

func (a *APIResponse) writeHeaders(contentType string) {
	a.w.Header().Set("Content-Type", contentType)
	if a.cacheStatus != "" {
		a.w.Header().Set("X-Cache", a.cacheStatus)
	}
	if a.r != nil {
		if tier, ok := a.r.Context().Value(rateLimitTypeKey).(string); ok && tier != "" {
			a.w.Header().Set("X-RateLimit-Type", tier)
		}
	}
	a.w.WriteHeader(a.statusCode)
}

// JSON marshals v and writes it as an application/json response
func (a *APIResponse) JSON(v interface{}) {
	a.writeHeaders("application/json")
	if raw, ok := v.(json.RawMessage); ok {
		if _, err := a.w.Write(raw); err != nil {
			log.Errorf("%s Failed to write response: %v", logcolors.LogHTTP, err)
		}
		return
	}
	if err := json.NewEncoder(a.w).Encode(v); err != nil {
		log.Errorf("%s Failed to encode response: %v", logcolors.LogHTTP, err)
	}
}

// Error writes a JSON error body with the given status code
func (a *APIResponse) Error(code int, message string) {
	a.statusCode = code
	a.JSON(map[string]string{"error": message})
}

// Text writes a plain text response
func (a *APIResponse) Text(body string) {
	a.writeHeaders("text/plain; charset=utf-8")
	if _, err := a.w.Write([]byte(body)); err != nil {
		log.Errorf("%s Failed to write response: %v", logcolors.LogHTTP, err)
	}
}
