package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dafibh/eventcore/internal/domain"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 5) // 10 per minute, burst of 5
	defer rl.Stop()

	uid := "uid-1"

	// First 5 requests should be allowed (burst)
	for i := 0; i < 5; i++ {
		if !rl.Allow(uid) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	// 6th request should be rate limited (exceeded burst)
	if rl.Allow(uid) {
		t.Error("Request 6 should be rate limited")
	}
}

func TestRateLimiter_DifferentCallers(t *testing.T) {
	rl := NewRateLimiterWithConfig(10, 3)
	defer rl.Stop()

	uid1 := "uid-1"
	uid2 := "uid-2"

	// Exhaust uid1's burst
	for i := 0; i < 3; i++ {
		if !rl.Allow(uid1) {
			t.Errorf("uid1 request %d should be allowed", i+1)
		}
	}

	// uid1 should be rate limited
	if rl.Allow(uid1) {
		t.Error("uid1 should be rate limited")
	}

	// uid2 should still have its full burst
	for i := 0; i < 3; i++ {
		if !rl.Allow(uid2) {
			t.Errorf("uid2 request %d should be allowed", i+1)
		}
	}
}

func TestRateLimitMiddleware_SkipsUnauthenticated(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(1, 1)
	defer rl.Stop()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events", nil)

	handlerCalled := false
	handler := func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "OK")
	}

	// Should pass through without rate limiting: no caller in context
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		handlerCalled = false

		err := RateLimitMiddleware(rl)(handler)(c)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if !handlerCalled {
			t.Error("Handler should be called for unauthenticated requests")
		}
	}
}

func withCaller(req *http.Request, uid string) *http.Request {
	ctx := context.WithValue(req.Context(), CallerKey, domain.Caller{UID: uid})
	return req.WithContext(ctx)
}

func TestRateLimitMiddleware_RateLimitsCaller(t *testing.T) {
	e := echo.New()
	rl := NewRateLimiterWithConfig(10, 2) // Small burst for testing
	defer rl.Stop()

	uid := "uid-rate-limited"

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}

	// First 2 requests should succeed (burst)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil), uid)
		c := e.NewContext(req, rec)

		err := RateLimitMiddleware(rl)(handler)(c)
		if err != nil {
			t.Fatalf("Request %d: Expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Request %d: Expected status 200, got %d", i+1, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") == "" {
			t.Errorf("Request %d: Expected X-RateLimit-Limit header", i+1)
		}
	}

	// 3rd request should be rate limited
	rec := httptest.NewRecorder()
	req := withCaller(httptest.NewRequest(http.MethodGet, "/api/v1/events", nil), uid)
	c := e.NewContext(req, rec)

	err := RateLimitMiddleware(rl)(handler)(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}
