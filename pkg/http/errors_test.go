package http_test

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	pkghttp "github.com/otpgate/otpgate/pkg/http"
)

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteError(w, 400, "test_error", "Test message")

	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "test_error", resp.Error)
	assert.Equal(t, "Test message", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	w := httptest.NewRecorder()

	pkghttp.WriteErrorWithDetails(w, 400, "test_error", "Test message", "Additional details")

	assert.Equal(t, 400, w.Code)

	var resp pkghttp.ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	assert.Equal(t, "Additional details", resp.Details)
}

func TestCommonWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w *httptest.ResponseRecorder)
		wantCode  int
		wantError string
	}{
		{"bad request", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadRequest(w, "m") }, 400, "bad_request"},
		{"unauthorized", func(w *httptest.ResponseRecorder) { pkghttp.WriteUnauthorized(w, "m") }, 401, "unauthorized"},
		{"forbidden", func(w *httptest.ResponseRecorder) { pkghttp.WriteForbidden(w, "m") }, 403, "forbidden"},
		{"not found", func(w *httptest.ResponseRecorder) { pkghttp.WriteNotFound(w, "m") }, 404, "not_found"},
		{"conflict", func(w *httptest.ResponseRecorder) { pkghttp.WriteConflict(w, "m") }, 409, "conflict"},
		{"locked", func(w *httptest.ResponseRecorder) { pkghttp.WriteLocked(w, "m") }, 423, "account_locked"},
		{"too many requests", func(w *httptest.ResponseRecorder) { pkghttp.WriteTooManyRequests(w, "m") }, 429, "rate_limit_exceeded"},
		{"internal error", func(w *httptest.ResponseRecorder) { pkghttp.WriteInternalError(w, "m") }, 500, "internal_error"},
		{"bad gateway", func(w *httptest.ResponseRecorder) { pkghttp.WriteBadGateway(w, "m") }, 502, "upstream_failure"},
		{"service unavailable", func(w *httptest.ResponseRecorder) { pkghttp.WriteServiceUnavailable(w, "m") }, 503, "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.wantCode, w.Code)

			var resp pkghttp.ErrorResponse
			json.Unmarshal(w.Body.Bytes(), &resp)
			assert.Equal(t, tt.wantError, resp.Error)
			assert.Equal(t, "m", resp.Message)
		})
	}
}

func TestWriteRateLimited_SetsRetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteRateLimited(w, "Too many requests", 90*time.Second)

	assert.Equal(t, 429, w.Code)
	assert.Equal(t, "90", w.Header().Get("Retry-After"))
}

func TestWriteRateLimited_RoundsUpSubSecond(t *testing.T) {
	w := httptest.NewRecorder()
	pkghttp.WriteRateLimited(w, "Too many requests", 300*time.Millisecond)

	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
