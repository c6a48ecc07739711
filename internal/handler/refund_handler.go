package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/service"
)

// RefundHandler exposes the admin side of the Refund Orchestrator (C8).
type RefundHandler struct {
	refunds *service.RefundService
}

func NewRefundHandler(refunds *service.RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds}
}

// AdminRefundRequest is the body for POST /api/v1/transactions/:orderId/refund.
// Exactly one of refund_all or per_line is meaningful:
// refund_all refunds every captured line (optionally capped); per_line maps
// line_id to an amount, where a null amount means "full remaining".
type AdminRefundRequest struct {
	RefundAll bool `json:"refund_all"`
	RefundAllCap *decimal.Decimal `json:"refund_all_cap,omitempty"`
	PerLineAmount map[string]*decimal.Decimal `json:"per_line_amount,omitempty"`
}

// RefundTransaction handles POST /api/v1/transactions/:orderId/refund.
func (h *RefundHandler) RefundTransaction(c echo.Context) error {
	caller := middleware.GetCaller(c)

	var req AdminRefundRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	t, err := h.refunds.AdminRefundEventTransaction(c.Request().Context(), service.AdminRefundRequest{
			OrderID: c.Param("orderId"),
			ByUID: caller.UID,
			RefundAll: req.RefundAll,
			RefundAllCap: req.RefundAllCap,
			PerLineAmount: req.PerLineAmount,
	})
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("order_id", c.Param("orderId")).Str("by_uid", caller.UID).Msg("admin refund processed")
	return c.JSON(http.StatusOK, t)
}
