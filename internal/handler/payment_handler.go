package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/service"
)

// PaymentHandler exposes the Payment Orchestrator (C7): order creation and
// capture for PayPal-funded registrants.
type PaymentHandler struct {
	payment *service.PaymentService
}

func NewPaymentHandler(payment *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payment: payment}
}

// CreateOrderRequest is the body for POST /api/v1/instances/:id/orders.
type CreateOrderRequest struct {
	Additions []AdditionRequest `json:"additions"`
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
}

// CreateOrder handles POST /api/v1/instances/:id/orders.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	caller := middleware.GetCaller(c)

	var req CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	additions := make([]service.Addition, 0, len(req.Additions))
	for _, a := range req.Additions {
		additions = append(additions, service.Addition{PersonID: a.PersonID, PaymentType: a.PaymentType})
	}

	result, err := h.payment.CreateOrder(c.Request().Context(), service.CreateOrderRequest{
			InstanceID: c.Param("id"),
			Caller: caller,
			Additions: additions,
			DiscountCodeID: req.DiscountCodeID,
			Now: time.Now(),
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("instance_id", c.Param("id")).Str("order_id", result.OrderID).Str("uid", caller.UID).Msg("order created")
	return c.JSON(http.StatusCreated, result)
}

// CaptureOrderRequest is the body for POST /api/v1/orders/:orderId/capture.
type CaptureOrderRequest struct {
	Additions []AdditionRequest `json:"additions"`
	Removals []string `json:"removals"`
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
}

// CaptureOrder handles POST /api/v1/orders/:orderId/capture.
func (h *PaymentHandler) CaptureOrder(c echo.Context) error {
	caller := middleware.GetCaller(c)

	var req CaptureOrderRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	additions := make([]service.Addition, 0, len(req.Additions))
	for _, a := range req.Additions {
		additions = append(additions, service.Addition{PersonID: a.PersonID, PaymentType: a.PaymentType})
	}

	result, err := h.payment.Capture(c.Request().Context(), service.CaptureRequest{
			OrderID: c.Param("orderId"),
			Caller: caller,
			Additions: additions,
			Removals: req.Removals,
			DiscountCodeID: req.DiscountCodeID,
			Now: time.Now(),
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("order_id", c.Param("orderId")).Str("uid", caller.UID).Msg("order captured")
	return c.JSON(http.StatusOK, result)
}
