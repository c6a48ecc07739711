package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/middleware"
	"github.com/dafibh/eventcore/internal/service"
)

// InstanceHandler exposes the Instance Projection Engine's read surface (C4)
// and the Override Packager & Validator (C5).
type InstanceHandler struct {
	projection *service.ProjectionService
	overrides *service.OverrideService
}

func NewInstanceHandler(projection *service.ProjectionService, overrides *service.OverrideService) *InstanceHandler {
	return &InstanceHandler{projection: projection, overrides: overrides}
}

// instanceView is the effective, override-merged view returned to callers.
type instanceView struct {
	*domain.EventInstance
	Effective domain.EffectiveEvent `json:"effective"`
}

// GetInstance handles GET /api/v1/instances/:id.
func (h *InstanceHandler) GetInstance(c echo.Context) error {
	inst, eff, err := h.overrides.EffectiveEvent(c.Param("id"))
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, instanceView{EventInstance: inst, Effective: eff})
}

// ListFutureInstances handles GET /api/v1/blueprints/:id/instances.
func (h *InstanceHandler) ListFutureInstances(c echo.Context) error {
	instances, err := h.projection.ListFuture(c.Param("id"), time.Now())
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, instances)
}

// ApplyOverrides handles PATCH /api/v1/instances/:id/overrides (admin only).
// The body is decoded by hand rather than via c.Bind: the override packager
// needs to distinguish a field key that is absent from the payload from one
// that is present and explicitly null, which a struct tag bind
// can't express.
func (h *InstanceHandler) ApplyOverrides(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	in, err := decodeOverridesInput(body)
	if err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	updated, err := h.overrides.ApplyOverrides(c.Param("id"), in, time.Now())
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("instance_id", updated.ID).Str("by_uid", middleware.GetCaller(c).UID).Msg("overrides applied")
	return c.JSON(http.StatusOK, updated)
}

// decodeOverridesInput parses a JSON object into an OverridesInput, setting
// Present from the object's own keys so "key absent" and "key: null" decode
// differently, per the tri-state contract documented on OverridesInput.
func decodeOverridesInput(body []byte) (domain.OverridesInput, error) {
	var raw map[string]json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			return domain.OverridesInput{}, err
		}
	}

	in := domain.OverridesInput{Present: make(map[string]bool, len(raw))}
	for key := range raw {
		in.Present[key] = true
	}

	fields := map[string]any{
		"localizations": &in.Localizations,
		"location_address": &in.LocationAddress,
		"image_id": &in.ImageID,
		"date": &in.Date,
		"end_date": &in.EndDate,
		"rsvp_required": &in.RSVPRequired,
		"registration_opens": &in.RegistrationOpens,
		"registration_deadline": &in.RegistrationDeadline,
		"automatic_refund_deadline": &in.AutomaticRefundDeadline,
		"max_spots": &in.MaxSpots,
		"price": &in.Price,
		"member_price": &in.MemberPrice,
		"payment_options": &in.PaymentOptions,
		"members_only": &in.MembersOnly,
		"gender": &in.Gender,
		"min_age": &in.MinAge,
		"max_age": &in.MaxAge,
		"registration_allowed": &in.RegistrationAllowed,
		"hidden": &in.Hidden,
	}
	for key, dst := range fields {
		val, ok := raw[key]
		if !ok || string(val) == "null" {
			continue
		}
		if err := json.Unmarshal(val, dst); err != nil {
			return domain.OverridesInput{}, err
		}
	}
	return in, nil
}
