package router

import (
	"github.com/dropship/backend/internal/interfaces/http/handler"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers are the endpoint groups served by the API
type Handlers struct {
	System     *handler.SystemHandler
	Sync       *handler.SyncHandler
	Settings   *handler.SettingsHandler
	Orders     *handler.OrderHandler
	Reviews    *handler.ReviewHandler
	Storefront *handler.StorefrontHandler
}

// Guards are the per-surface middleware
type Guards struct {
	// AdminToken protects /admin; empty disables the check
	AdminToken string
	// Storefront limits the public surface; nil disables limiting
	Storefront *middleware.RateLimiter
}

// RegisterAPI mounts the system, storefront and admin groups on engine
func RegisterAPI(engine *gin.Engine, h Handlers, guards Guards) {
	r := NewRouter(engine)

	system := NewDomainGroup("system", "/system").
		GET("/ping", h.System.Ping).
		GET("/ready", h.System.Ready).
		GET("/info", h.System.GetSystemInfo)
	r.Register(system)

	storefront := NewDomainGroup("storefront", "")
	if guards.Storefront != nil {
		storefront.Use(middleware.RateLimit(guards.Storefront))
	}
	storefront.
		GET("/products/:slug/availability", h.Storefront.Availability).
		POST("/shipping/estimate", h.Storefront.EstimateShipping)
	r.Register(storefront)

	admin := NewDomainGroup("admin", "/admin").Use(middleware.AdminToken(guards.AdminToken))
	admin.
		POST("/sync", h.Sync.Sync).
		GET("/sync/runs", h.Sync.ListRuns).
		POST("/reprice", h.Sync.Reprice).
		POST("/stock/check", h.Sync.CheckStock).
		POST("/reviews/sync", h.Reviews.Sync)
	admin.Group("settings", "/settings").
		GET("/pricing", h.Settings.GetPricing).
		PUT("/pricing", h.Settings.UpdatePricing).
		GET("/shipping", h.Settings.GetShipping).
		PUT("/shipping", h.Settings.UpdateShipping)
	admin.Group("orders", "/orders").
		POST("/poll", h.Orders.PollOpen).
		GET("/:id", h.Orders.Get).
		GET("/:id/history", h.Orders.History).
		POST("/:id/fulfill", h.Orders.Fulfill).
		POST("/:id/tracking", h.Orders.Track).
		POST("/:id/cancel", h.Orders.Cancel).
		POST("/:id/refund", h.Orders.Refund)
	r.Register(admin)

	r.Setup()
}
