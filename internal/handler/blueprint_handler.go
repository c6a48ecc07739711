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

// BlueprintHandler exposes the admin-authored Event Blueprint component (C3).
type BlueprintHandler struct {
	blueprints *service.BlueprintService
}

func NewBlueprintHandler(blueprints *service.BlueprintService) *BlueprintHandler {
	return &BlueprintHandler{blueprints: blueprints}
}

// CreateBlueprint handles POST /api/v1/blueprints (admin only).
func (h *BlueprintHandler) CreateBlueprint(c echo.Context) error {
	var b domain.EventBlueprint
	if err := c.Bind(&b); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}

	created, err := h.blueprints.Create(&b, time.Now())
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("blueprint_id", created.ID).Str("by_uid", middleware.GetCaller(c).UID).Msg("blueprint created")
	return c.JSON(http.StatusCreated, created)
}

// GetBlueprint handles GET /api/v1/blueprints/:id.
func (h *BlueprintHandler) GetBlueprint(c echo.Context) error {
	b, err := h.blueprints.GetByID(c.Param("id"))
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// UpdateBlueprint handles PUT /api/v1/blueprints/:id (admin only).
func (h *BlueprintHandler) UpdateBlueprint(c echo.Context) error {
	var b domain.EventBlueprint
	if err := c.Bind(&b); err != nil {
		return NewValidationError(c, "invalid request body", nil)
	}
	b.ID = c.Param("id")

	updated, err := h.blueprints.Update(&b, time.Now())
	if err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("blueprint_id", updated.ID).Str("by_uid", middleware.GetCaller(c).UID).Msg("blueprint updated")
	return c.JSON(http.StatusOK, updated)
}

// ListPublishing handles GET /api/v1/blueprints/publishing: every blueprint
// currently flagged as publishing.
func (h *BlueprintHandler) ListPublishing(c echo.Context) error {
	list, err := h.blueprints.ListPublishing()
	if err != nil {
		return WriteDomainError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// DeleteBlueprint handles DELETE /api/v1/blueprints/:id (admin only): refunds
// every upcoming paid line, snapshots, then deletes instances and the
// blueprint itself.
func (h *BlueprintHandler) DeleteBlueprint(c echo.Context) error {
	caller := middleware.GetCaller(c)
	if err := h.blueprints.Delete(c.Param("id"), caller.UID, time.Now()); err != nil {
		return WriteDomainError(c, err)
	}

	log.Info().Str("blueprint_id", c.Param("id")).Str("by_uid", caller.UID).Msg("blueprint deleted")
	return c.NoContent(http.StatusNoContent)
}
