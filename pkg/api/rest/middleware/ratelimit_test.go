package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: false})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/knn", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when rate limiting is disabled, got %d", rec.Code)
	}
}

func TestRateLimitMiddleware_PerIPExceeded(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: true, PerIP: true, RequestsPerSec: 1, Burst: 1})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/knn", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		return req
	}

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newReq())
	if first.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newReq())
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request from the same IP to be throttled, got %d", second.Code)
	}
}

func TestRateLimitMiddleware_PerTenantIsolatesBuckets(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Enabled: true, PerTenant: true, RequestsPerSec: 1, Burst: 1})
	handler := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	reqFor := func(tenant string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/v1/knn", nil)
		ctx := context.WithValue(req.Context(), UserContextKey, &Claims{Tenant: tenant})
		return req.WithContext(ctx)
	}

	firstA := httptest.NewRecorder()
	handler.ServeHTTP(firstA, reqFor("tenant-a"))
	if firstA.Code != http.StatusOK {
		t.Fatalf("expected first request for tenant-a to pass, got %d", firstA.Code)
	}

	secondA := httptest.NewRecorder()
	handler.ServeHTTP(secondA, reqFor("tenant-a"))
	if secondA.Code != http.StatusTooManyRequests {
		t.Errorf("expected second request for tenant-a to be throttled, got %d", secondA.Code)
	}

	// A different tenant gets its own bucket and is unaffected.
	firstB := httptest.NewRecorder()
	handler.ServeHTTP(firstB, reqFor("tenant-b"))
	if firstB.Code != http.StatusOK {
		t.Errorf("expected tenant-b's first request to pass despite tenant-a being throttled, got %d", firstB.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.5")

	if ip := getClientIP(req); ip != "198.51.100.5" {
		t.Errorf("expected X-Forwarded-For to be used, got %q", ip)
	}
}
