package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dafibh/eventcore/internal/domain"
)

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error types
const (
	ErrorTypeValidation   = "https://eventcore.app/errors/validation"
	ErrorTypeNotFound     = "https://eventcore.app/errors/not-found"
	ErrorTypeUnauthorized = "https://eventcore.app/errors/unauthorized"
	ErrorTypeForbidden    = "https://eventcore.app/errors/forbidden"
	ErrorTypeConflict     = "https://eventcore.app/errors/conflict"
	ErrorTypeInternal     = "https://eventcore.app/errors/internal"
)

// NewValidationError creates a validation error response
func NewValidationError(c echo.Context, detail string, errors []ValidationError) error {
	return c.JSON(http.StatusBadRequest, ProblemDetails{
		Type:     ErrorTypeValidation,
		Title:    "Validation Error",
		Status:   http.StatusBadRequest,
		Detail:   detail,
		Instance: c.Request().URL.Path,
		Errors:   errors,
	})
}

// NewNotFoundError creates a not found error response
func NewNotFoundError(c echo.Context, detail string) error {
	return c.JSON(http.StatusNotFound, ProblemDetails{
		Type:     ErrorTypeNotFound,
		Title:    "Not Found",
		Status:   http.StatusNotFound,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewUnauthorizedError creates an unauthorized error response
func NewUnauthorizedError(c echo.Context, detail string) error {
	return c.JSON(http.StatusUnauthorized, ProblemDetails{
		Type:     ErrorTypeUnauthorized,
		Title:    "Unauthorized",
		Status:   http.StatusUnauthorized,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewForbiddenError creates a forbidden error response
func NewForbiddenError(c echo.Context, detail string) error {
	return c.JSON(http.StatusForbidden, ProblemDetails{
		Type:     ErrorTypeForbidden,
		Title:    "Forbidden",
		Status:   http.StatusForbidden,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewConflictError creates a conflict error response
func NewConflictError(c echo.Context, detail string) error {
	return c.JSON(http.StatusConflict, ProblemDetails{
		Type:     ErrorTypeConflict,
		Title:    "Conflict",
		Status:   http.StatusConflict,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// NewInternalError creates an internal error response
func NewInternalError(c echo.Context, detail string) error {
	return c.JSON(http.StatusInternalServerError, ProblemDetails{
		Type:     ErrorTypeInternal,
		Title:    "Internal Server Error",
		Status:   http.StatusInternalServerError,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	})
}

// WriteDomainError renders any error returned by the service layer as a
// Problem Details response, mapping domain.Error.Kind to the HTTP status the
// error handling design assigns it. Plain not-found sentinels and generic
// errors fall back to 404/500 respectively.
func WriteDomainError(c echo.Context, err error) error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		switch derr.Kind {
		case domain.KindValidationFailed:
			return NewValidationError(c, derr.Error(), nil)
		case domain.KindConflict, domain.KindCaptureMismatch, domain.KindLedgerInconsistent, domain.KindRollbackFailed:
			return NewConflictError(c, derr.Error())
		case domain.KindCapacityExceeded, domain.KindClosed, domain.KindRefundDeadline:
			return NewConflictError(c, derr.Error())
		case domain.KindProviderUnavailable, domain.KindProviderAuth, domain.KindProviderRejected:
			return c.JSON(http.StatusBadGateway, ProblemDetails{
				Type:     ErrorTypeInternal,
				Title:    "Payment Provider Error",
				Status:   http.StatusBadGateway,
				Detail:   derr.Error(),
				Instance: c.Request().URL.Path,
			})
		case domain.KindNotFound:
			return NewNotFoundError(c, derr.Error())
		case domain.KindForbidden:
			return NewForbiddenError(c, derr.Error())
		default:
			return NewInternalError(c, derr.Error())
		}
	}

	switch {
	case errors.Is(err, domain.ErrBlueprintNotFound),
		errors.Is(err, domain.ErrInstanceNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrDiscountCodeNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrRefundNotFound):
		return NewNotFoundError(c, err.Error())
	default:
		return NewInternalError(c, err.Error())
	}
}
