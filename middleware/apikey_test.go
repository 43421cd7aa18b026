package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func runAPIKeyRequest(t *testing.T, mw func(http.Handler) http.Handler, path, key string) *httptest.ResponseRecorder {
	t.Helper()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestAPIKeyNotRequired(t *testing.T) {
	mw := APIKeyMiddleware("secret", false, nil)
	if w := runAPIKeyRequest(t, mw, "/gridData", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth disabled", w.Code)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	mw := APIKeyMiddleware("secret", true, []string{"/health"})

	tests := []struct {
		name     string
		path     string
		key      string
		expected int
	}{
		{"missing key", "/gridData", "", http.StatusUnauthorized},
		{"wrong key", "/gridData", "nope", http.StatusUnauthorized},
		{"valid key", "/gridData", "secret", http.StatusOK},
		{"public path needs no key", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := runAPIKeyRequest(t, mw, tt.path, tt.key); w.Code != tt.expected {
				t.Errorf("status = %d, want %d", w.Code, tt.expected)
			}
		})
	}
}

func TestAPIKeyPublicPrefix(t *testing.T) {
	mw := APIKeyMiddleware("secret", true, []string{"/cache/*"})

	if w := runAPIKeyRequest(t, mw, "/cache/backups", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for public prefix match", w.Code)
	}
	if w := runAPIKeyRequest(t, mw, "/gridData", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 for non-public path", w.Code)
	}
}

func TestAPIKeyRequiredButUnconfigured(t *testing.T) {
	mw := APIKeyMiddleware("", true, nil)
	if w := runAPIKeyRequest(t, mw, "/gridData", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when key unconfigured (misconfiguration tolerated)", w.Code)
	}
}
