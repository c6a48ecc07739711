package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/service"
)

// RegistrationHandler exposes the Registration State Machine (C6) directly,
// for the free and door payment types that never touch the payment
// provider. PayPal-funded additions go through PaymentHandler instead.
type RegistrationHandler struct {
	registration *service.RegistrationService
}

func NewRegistrationHandler(registration *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration}
}

// AdditionRequest is one registrant to add, by person id (SELF or a family
// member id) and declared payment type.
type AdditionRequest struct {
	PersonID string `json:"person_id"`
	PaymentType domain.PaymentType `json:"payment_type"`
}

// RegisterRequest is the body for POST /api/v1/instances/:id/registration.
type RegisterRequest struct {
	Additions []AdditionRequest `json:"additions"`
	Removals []string `json:"removals"`
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
}

// Register handles POST /api/v1/instances/:id/registration: additions,
// removals, or both in one atomic change. PayPal additions must go
// through the payment orchestrator's create-order/capture flow instead;
// this endpoint rejects them since they carry no captured lineage.
func (h *RegistrationHandler) Register(c echo.Context) error {
	caller := middleware.GetCaller(c)

	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	additions := make([]service.Addition, 0, len(req.Additions))
	for _, a := range req.Additions {
		if a.PaymentType == domain.PaymentTypePayPal {
			return NewValidationError(c, "paypal additions must go through order creation", nil)
		}
		additions = append(additions, service.Addition{PersonID: a.PersonID, PaymentType: a.PaymentType})
	}

	result, err := h.registration.ProcessChangeEventRegistration(c.Request().Context(), service.ChangeRequest{
			InstanceID: c.Param("id"),
			Caller: caller,
			Additions: additions,
			Removals: req.Removals,
			DiscountCodeID: req.DiscountCodeID,
			Now: time.Now(),
		}, nil)
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("instance_id", c.Param("id")).Str("uid", caller.UID).Int("seat_delta", result.SeatDelta).Msg("registration changed")
	return c.JSON(http.StatusOK, result)
}
