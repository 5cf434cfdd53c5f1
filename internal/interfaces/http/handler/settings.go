package handler

import (
	"context"

	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/gin-gonic/gin"
)

// SettingsStore reads and partially updates the stored policies
type SettingsStore interface {
	Pricing(ctx context.Context) pricing.Config
	Shipping(ctx context.Context) shipping.Config
	UpdatePricing(ctx context.Context, overrides map[string]any) (pricing.Config, error)
	UpdateShipping(ctx context.Context, overrides map[string]any) (shipping.Config, error)
}

// SettingsHandler serves the pricing and shipping policy endpoints
type SettingsHandler struct {
	BaseHandler
	store SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GetPricing returns the active pricing policy
//
//	GET /admin/settings/pricing
func (h *SettingsHandler) GetPricing(c *gin.Context) {
	h.Success(c, h.store.Pricing(c.Request.Context()))
}

// UpdatePricing merges the body into the stored pricing policy. Fields
// left out keep their current value.
//
//	PUT /admin/settings/pricing
func (h *SettingsHandler) UpdatePricing(c *gin.Context) {
	var overrides map[string]any
	if !h.BindJSON(c, &overrides, false) {
		return
	}
	cfg, err := h.store.UpdatePricing(c.Request.Context(), overrides)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// GetShipping returns the active shipping policy
//
//	GET /admin/settings/shipping
func (h *SettingsHandler) GetShipping(c *gin.Context) {
	h.Success(c, h.store.Shipping(c.Request.Context()))
}

// UpdateShipping merges the body into the stored shipping policy
//
//	PUT /admin/settings/shipping
func (h *SettingsHandler) UpdateShipping(c *gin.Context) {
	var overrides map[string]any
	if !h.BindJSON(c, &overrides, false) {
		return
	}
	cfg, err := h.store.UpdateShipping(c.Request.Context(), overrides)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}
