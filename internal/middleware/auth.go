package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/domain"
)

// CustomClaims contains the custom claims from Auth0 JWT
type CustomClaims struct {
	Email string `json:"email"`
	Name string `json:"name"`
	IsAdmin bool `json:"https://eventcore.app/is_admin"`
}

// Validate implements validator.CustomClaims
func (c CustomClaims) Validate(ctx context.Context) error {
	return nil
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ClaimsKey is the context key for JWT claims
	ClaimsKey contextKey = "claims"
	// Auth0IDKey is the context key for the Auth0 user ID (subject)
	Auth0IDKey contextKey = "auth0_id"
	// CallerKey is the context key for the resolved domain.Caller
	CallerKey contextKey = "caller"
)

// CallerProvider resolves the authenticated caller's profile snapshot — the
// membership flag, family-member list, and birthday the core needs but never
// fetches itself. An external auth collaborator.
type CallerProvider interface {
	GetCallerByAuth0ID(auth0ID string) (domain.UserSnapshot, error)
}

// AuthMiddleware provides JWT validation middleware
type AuthMiddleware struct {
	validator *validator.Validator
	callerProvider CallerProvider
}

// NewAuthMiddleware creates a new AuthMiddleware with Auth0 configuration
func NewAuthMiddleware(domainName, audience string, callerProvider CallerProvider) (*AuthMiddleware, error) {
	issuerURL, err := url.Parse("https://" + domainName + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
				return &CustomClaims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return &AuthMiddleware{
		validator: jwtValidator,
		callerProvider: callerProvider,
	}, nil
}

// Authenticate returns an Echo middleware that validates JWT tokens and
// resolves the request's domain.Caller.
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return unauthorizedError(c, "invalid authorization header format")
			}

			claims, err := m.validator.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "invalid token")
			}

			validatedClaims, ok := claims.(*validator.ValidatedClaims)
			if !ok {
				return unauthorizedError(c, "invalid claims")
			}

			auth0ID := validatedClaims.RegisteredClaims.Subject
			custom, _ := validatedClaims.CustomClaims.(*CustomClaims)

			user, err := m.callerProvider.GetCallerByAuth0ID(auth0ID)
			if err != nil {
				log.Debug().Err(err).Str("auth0_id", auth0ID).Msg("Caller lookup failed")
				return unauthorizedError(c, "caller not found")
			}
			if user.UID == "" {
				user.UID = auth0ID
			}

			caller := domain.Caller{
				UID: user.UID,
				User: user,
				IsAdmin: custom != nil && custom.IsAdmin,
			}

			ctx := context.WithValue(c.Request().Context(), ClaimsKey, validatedClaims)
			ctx = context.WithValue(ctx, Auth0IDKey, auth0ID)
			ctx = context.WithValue(ctx, CallerKey, caller)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// RequireAdmin returns an Echo middleware that rejects non-admin callers. It
// must run after Authenticate.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !GetCaller(c).IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "administrator privileges required")
			}
			return next(c)
		}
	}
}

// GetAuth0ID extracts the Auth0 user ID from the context
func GetAuth0ID(c echo.Context) string {
	if id, ok := c.Request().Context().Value(Auth0IDKey).(string); ok {
		return id
	}
	return ""
}

// GetCaller extracts the resolved domain.Caller from the context.
func GetCaller(c echo.Context) domain.Caller {
	if caller, ok := c.Request().Context().Value(CallerKey).(domain.Caller); ok {
		return caller
	}
	return domain.Caller{}
}
