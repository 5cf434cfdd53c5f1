package handler

import (
	"context"
	"strings"

	appshipping "github.com/dropship/backend/internal/application/shipping"
	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductFinder looks up listed products for the storefront
type ProductFinder interface {
	FindBySlug(ctx context.Context, slug string) (*catalog.Product, error)
}

// VariantFinder loads the sellable variants of a product
type VariantFinder interface {
	FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error)
}

// CartEstimator quotes shipping for storefront carts
type CartEstimator interface {
	EstimateCart(ctx context.Context, country string, lines []appshipping.CartLine) (shipping.Quote, error)
}

// StorefrontHandler serves the public read endpoints
type StorefrontHandler struct {
	BaseHandler
	products  ProductFinder
	variants  VariantFinder
	estimator CartEstimator
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(products ProductFinder, variants VariantFinder, estimator CartEstimator) *StorefrontHandler {
	return &StorefrontHandler{products: products, variants: variants, estimator: estimator}
}

// Combination is one purchasable color/size pair
type Combination struct {
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
	VariantID uuid.UUID       `json:"variant_id"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
}

// Selection is the resolved color/size choice
type Selection struct {
	Color     string     `json:"color,omitempty"`
	Size      string     `json:"size,omitempty"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Image     string     `json:"image,omitempty"`
}

// AvailabilityResponse describes which variants of a product can be bought
type AvailabilityResponse struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Slug            string          `json:"slug"`
	Name            string          `json:"name"`
	RetailPrice     decimal.Decimal `json:"retail_price"`
	CompareAtPrice  decimal.Decimal `json:"compare_at_price"`
	Colors          []string        `json:"colors"`
	Sizes           []string        `json:"sizes"`
	AvailableColors []string        `json:"available_colors"`
	AvailableSizes  []string        `json:"available_sizes"`
	Selected        Selection       `json:"selected"`
	Combinations    []Combination   `json:"combinations"`
}

// EstimateRequest is a storefront cart to quote
type EstimateRequest struct {
	Country string                 `json:"country" binding:"required,len=2"`
	Items   []appshipping.CartLine `json:"items" binding:"required,min=1,max=50,dive"`
}

// Availability returns the variant matrix of an active product. The color
// and size query parameters are resolved to the closest valid selection.
//
//	GET /products/:slug/availability
func (h *StorefrontHandler) Availability(c *gin.Context) {
	ctx := c.Request.Context()
	product, err := h.products.FindBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !product.IsActive() {
		h.HandleError(c, shared.ErrNotFound)
		return
	}
	variants, err := h.variants.FindActiveByProduct(ctx, product.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	m := catalog.NewAvailabilityMatrix(variants, product.PrimaryImage())
	sel := resolveSelection(m, strings.TrimSpace(c.Query("color")), strings.TrimSpace(c.Query("size")))

	combos := make([]Combination, 0, len(variants))
	for _, v := range variants {
		if !v.InStock() {
			continue
		}
		price := v.RetailPrice
		if !price.IsPositive() {
			price = product.RetailPrice
		}
		combos = append(combos, Combination{
			Color:     v.Color,
			Size:      v.Size,
			VariantID: v.ID,
			Price:     price,
			Stock:     v.StockCount,
		})
	}

	h.Success(c, AvailabilityResponse{
		ProductID:       product.ID,
		Slug:            product.Slug,
		Name:            product.Name,
		RetailPrice:     product.RetailPrice,
		CompareAtPrice:  product.CompareAtPrice,
		Colors:          m.Colors(),
		Sizes:           m.Sizes(),
		AvailableColors: m.AvailableColors(sel.Size),
		AvailableSizes:  m.AvailableSizes(sel.Color),
		Selected:        sel,
		Combinations:    combos,
	})
}

// resolveSelection keeps the requested color when possible and moves the
// size to the first one in stock for it
func resolveSelection(m *catalog.AvailabilityMatrix, color, size string) Selection {
	if color == "" {
		color = m.BestColorForSize(size)
	}
	if size == "" || !m.IsComboValid(color, size) {
		size = m.BestSizeForColor(color)
	}
	sel := Selection{Color: color, Size: size, Image: m.BestImage(color)}
	if id, ok := m.VariantID(color, size); ok {
		sel.VariantID = &id
	}
	return sel
}

// EstimateShipping quotes shipping for a cart
//
//	POST /shipping/estimate
func (h *StorefrontHandler) EstimateShipping(c *gin.Context) {
	var req EstimateRequest
	if !h.BindJSON(c, &req, false) {
		return
	}
	quote, err := h.estimator.EstimateCart(c.Request.Context(), strings.ToUpper(req.Country), req.Items)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}
