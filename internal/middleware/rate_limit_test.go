package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRateLimitByIP_AllowsWithinLimit verifies requests under the ceiling pass through
func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	config := RateLimitConfig{RequestsPerMinute: 5}
	middleware := RateLimitByIP(config)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.10:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("request %d failed with status %d, expected 200", i+1, recorder.Code)
		}
	}
}

// TestRateLimitByIP_Returns429OverLimit verifies the JSON 429 response over the ceiling
func TestRateLimitByIP_Returns429OverLimit(t *testing.T) {
	config := RateLimitConfig{RequestsPerMinute: 2}
	middleware := RateLimitByIP(config)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "203.0.113.20:1234"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusOK {
			t.Fatalf("request %d failed with status %d", i+1, recorder.Code)
		}
	}

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.20:1234"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTooManyRequests {
		t.Errorf("expected status %d, got %d", http.StatusTooManyRequests, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if body := recorder.Body.String(); body != `{"error":"rate_limit_exceeded","message":"Rate limit exceeded"}` {
		t.Errorf("unexpected response body: %s", body)
	}
}

// TestRateLimitByIP_IsolatesSourceBuckets verifies separate counters per client IP
func TestRateLimitByIP_IsolatesSourceBuckets(t *testing.T) {
	config := RateLimitConfig{RequestsPerMinute: 1}
	middleware := RateLimitByIP(config)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/auth/register", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first client request failed with status %d", recorder.Code)
	}

	req = httptest.NewRequest("POST", "/auth/register", nil)
	req.RemoteAddr = "198.51.100.1:5000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusTooManyRequests {
		t.Fatalf("expected first client to be limited, got %d", recorder.Code)
	}

	req = httptest.NewRequest("POST", "/auth/register", nil)
	req.RemoteAddr = "198.51.100.2:5000"
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("second client should have an independent bucket, got status %d", recorder.Code)
	}
}

func TestDefaultAuthRateLimit(t *testing.T) {
	config := DefaultAuthRateLimit()
	if config.RequestsPerMinute != 20 {
		t.Errorf("expected 20 requests per minute, got %d", config.RequestsPerMinute)
	}
}
