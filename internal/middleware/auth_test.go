package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/dafibh/eventcore/internal/domain"
)

func TestGetAuth0ID(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name     string
		setup    func(c echo.Context)
		expected string
	}{
		{
			name: "returns auth0 id when present",
			setup: func(c echo.Context) {
				ctx := context.WithValue(c.Request().Context(), Auth0IDKey, "auth0|12345")
				c.SetRequest(c.Request().WithContext(ctx))
			},
			expected: "auth0|12345",
		},
		{
			name:     "returns empty string when not present",
			setup:    func(c echo.Context) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			tt.setup(c)

			result := GetAuth0ID(c)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestGetCaller(t *testing.T) {
	e := echo.New()

	t.Run("returns caller when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		caller := domain.Caller{UID: "uid-1", User: domain.UserSnapshot{UID: "uid-1", Membership: true}}
		ctx := context.WithValue(c.Request().Context(), CallerKey, caller)
		c.SetRequest(c.Request().WithContext(ctx))

		result := GetCaller(c)
		if result.UID != "uid-1" {
			t.Errorf("Expected uid 'uid-1', got %q", result.UID)
		}
		if !result.User.Membership {
			t.Error("Expected membership true")
		}
	})

	t.Run("returns zero value when not present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		result := GetCaller(c)
		if result.UID != "" {
			t.Errorf("Expected empty uid, got %q", result.UID)
		}
	})
}

func TestCustomClaims_Validate(t *testing.T) {
	claims := &CustomClaims{
		Email: "test@example.com",
		Name:  "Test",
	}

	err := claims.Validate(context.Background())
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestAuthMiddleware_MissingAuthorizationHeader(t *testing.T) {
	e := echo.New()

	m := &AuthMiddleware{}
	handler := m.Authenticate()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler(c)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.Contains(rec.Body.String(), errorTypeUnauthorized) {
		t.Fatalf("Expected unauthorized problem body, got %q", rec.Body.String())
	}

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidAuthorizationHeaderFormat(t *testing.T) {
	e := echo.New()

	m := &AuthMiddleware{}

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "invalid-token"},
		{"wrong prefix", "Basic token123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := m.Authenticate()(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := handler(c)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			if !strings.Contains(rec.Body.String(), errorTypeUnauthorized) {
				t.Fatalf("Expected unauthorized problem body, got %q", rec.Body.String())
			}

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", rec.Code)
			}
		})
	}
}

// mockCallerProvider implements CallerProvider for testing.
type mockCallerProvider struct {
	snapshot domain.UserSnapshot
	err      error
}

func (m *mockCallerProvider) GetCallerByAuth0ID(auth0ID string) (domain.UserSnapshot, error) {
	if m.err != nil {
		return domain.UserSnapshot{}, m.err
	}
	return m.snapshot, nil
}

func TestCallerProvider_Lookup(t *testing.T) {
	t.Run("returns snapshot on success", func(t *testing.T) {
		provider := &mockCallerProvider{snapshot: domain.UserSnapshot{UID: "uid-1", Membership: true}}

		var _ CallerProvider = provider

		snap, err := provider.GetCallerByAuth0ID("auth0|test")
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if snap.UID != "uid-1" {
			t.Errorf("Expected uid 'uid-1', got %q", snap.UID)
		}
	})

	t.Run("returns error on lookup failure", func(t *testing.T) {
		provider := &mockCallerProvider{err: echo.NewHTTPError(http.StatusUnauthorized, "caller not found")}

		_, err := provider.GetCallerByAuth0ID("auth0|invalid")
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	e := echo.New()

	t.Run("allows admin caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		ctx := context.WithValue(c.Request().Context(), CallerKey, domain.Caller{UID: "uid-1", IsAdmin: true})
		c.SetRequest(c.Request().WithContext(ctx))

		handler := RequireAdmin()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
		if err := handler(c); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	})

	t.Run("rejects non-admin caller", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		ctx := context.WithValue(c.Request().Context(), CallerKey, domain.Caller{UID: "uid-1", IsAdmin: false})
		c.SetRequest(c.Request().WithContext(ctx))

		handler := RequireAdmin()(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
		err := handler(c)
		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("Expected HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", httpErr.Code)
		}
	})
}
