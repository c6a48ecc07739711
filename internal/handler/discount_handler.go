package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/service"
)

// DiscountHandler exposes admin management of event-scoped discount codes.
type DiscountHandler struct {
	discounts *service.DiscountService
}

func NewDiscountHandler(discounts *service.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// CreateDiscountCode handles POST /api/v1/discount-codes (admin only).
func (h *DiscountHandler) CreateDiscountCode(c echo.Context) error {
	var d domain.DiscountCode
	if err := c.Bind(&d); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	created, err := h.discounts.Create(&d)
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("discount_code_id", created.ID).Str("by_uid", middleware.GetCaller(c).UID).Msg("discount code created")
	return c.JSON(http.StatusCreated, created)
}

// GetDiscountCode handles GET /api/v1/discount-codes/:id (admin only).
func (h *DiscountHandler) GetDiscountCode(c echo.Context) error {
	d, err := h.discounts.GetByID(c.Param("id"))
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// UpdateDiscountCode handles PUT /api/v1/discount-codes/:id (admin only).
func (h *DiscountHandler) UpdateDiscountCode(c echo.Context) error {
	var d domain.DiscountCode
	if err := c.Bind(&d); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}
	d.ID = c.Param("id")

	updated, err := h.discounts.Update(&d)
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// DeleteDiscountCode handles DELETE /api/v1/discount-codes/:id (admin only).
func (h *DiscountHandler) DeleteDiscountCode(c echo.Context) error {
	if err := h.discounts.Delete(c.Param("id")); err != nil {
		return WriteDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
