package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func apiKeyHandler(key string) http.Handler {
	return APIKey(key)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestAPIKeyDisabled(t *testing.T) {
	handler := apiKeyHandler("")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("empty key should disable auth, got %d", rec.Code)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAPIKeyHeader(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", http.NoBody)
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAPIKeyBearer(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAPIKeyWrong(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/consultations", http.NoBody)
	req.Header.Set("X-API-Key", "not-the-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAPIKeyHealthExempt(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("health should be exempt, got %d", rec.Code)
	}
}

func TestAPIKeyPreflightExempt(t *testing.T) {
	handler := apiKeyHandler("secret-key")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/consultations", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight should be exempt, got %d", rec.Code)
	}
}
