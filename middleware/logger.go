package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/ptnghia-j/ChordMiniApp-sub001/logcolors"
	"github.com/ptnghia-j/ChordMiniApp-sub001/stats"
)

// statusRecorder captures the status code a handler writes so it can
// be logged and counted after the fact.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// getStatusColor returns the ANSI color for a status code class
func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "\033[32m" // green
	case statusCode >= 300 && statusCode < 400:
		return "\033[36m" // cyan
	case statusCode >= 400 && statusCode < 500:
		return "\033[33m" // yellow
	default:
		return "\033[31m" // red
	}
}

// LoggingMiddleware tags every request with a generated request ID,
// logs method/path/status/duration and feeds the stats counters.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(recorder, r)

		duration := time.Since(start)

		s := stats.Get()
		s.RecordRequest(r.URL.Path)
		s.RecordStatusCode(recorder.statusCode)
		s.RecordResponseTime(duration, r.URL.Path)

		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      recorder.statusCode,
			"duration_ms": duration.Milliseconds(),
			"remote":      r.RemoteAddr,
		}).Infof("%s %s%d%s %s %s",
			logcolors.LogRequest,
			getStatusColor(recorder.statusCode), recorder.statusCode, logcolors.Reset,
			r.Method, r.URL.Path)
	})
}
