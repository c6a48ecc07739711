package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/dafibh/eventcore/internal/middleware"
)

// Handlers bundles every HTTP handler the API exposes, for a single
// RegisterRoutes call site in cmd/api/main.go.
type Handlers struct {
	Blueprint    *BlueprintHandler
	Instance     *InstanceHandler
	Registration *RegistrationHandler
	Payment      *PaymentHandler
	Refund       *RefundHandler
	Discount     *DiscountHandler
}

// RegisterRoutes wires every handler into the Echo route tree. Every route
// requires an authenticated caller; admin-only routes additionally require
// RequireAdmin. Rate limiting applies to all authenticated traffic.
func RegisterRoutes(e *echo.Echo, auth *middleware.AuthMiddleware, rl *middleware.RateLimiter, h Handlers) {
	api := e.Group("/api/v1")
	api.Use(auth.Authenticate())
	api.Use(middleware.RateLimitMiddleware(rl))

	blueprints := api.Group("/blueprints")
	blueprints.POST("", h.Blueprint.CreateBlueprint, middleware.RequireAdmin())
	blueprints.GET("/publishing", h.Blueprint.ListPublishing)
	blueprints.GET("/:id", h.Blueprint.GetBlueprint)
	blueprints.PUT("/:id", h.Blueprint.UpdateBlueprint, middleware.RequireAdmin())
	blueprints.DELETE("/:id", h.Blueprint.DeleteBlueprint, middleware.RequireAdmin())
	blueprints.GET("/:id/instances", h.Instance.ListFutureInstances)

	instances := api.Group("/instances")
	instances.GET("/:id", h.Instance.GetInstance)
	instances.PATCH("/:id/overrides", h.Instance.ApplyOverrides, middleware.RequireAdmin())
	instances.POST("/:id/registration", h.Registration.Register)
	instances.POST("/:id/orders", h.Payment.CreateOrder)

	orders := api.Group("/orders")
	orders.POST("/:orderId/capture", h.Payment.CaptureOrder)

	transactions := api.Group("/transactions")
	transactions.POST("/:orderId/refund", h.Refund.RefundTransaction, middleware.RequireAdmin())

	discounts := api.Group("/discount-codes")
	discounts.Use(middleware.RequireAdmin())
	discounts.POST("", h.Discount.CreateDiscountCode)
	discounts.GET("/:id", h.Discount.GetDiscountCode)
	discounts.PUT("/:id", h.Discount.UpdateDiscountCode)
	discounts.DELETE("/:id", h.Discount.DeleteDiscountCode)
}
