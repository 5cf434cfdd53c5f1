package handler

import (
	"context"

	"github.com/dropship/backend/internal/application/review"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReviewSyncer imports supplier reviews
type ReviewSyncer interface {
	SyncProduct(ctx context.Context, productID uuid.UUID) (*review.ProductResult, error)
	SyncAll(ctx context.Context) (*review.Result, error)
}

// ReviewHandler serves the review sync trigger
type ReviewHandler struct {
	BaseHandler
	syncer ReviewSyncer
}

// NewReviewHandler creates a new ReviewHandler
func NewReviewHandler(syncer ReviewSyncer) *ReviewHandler {
	return &ReviewHandler{syncer: syncer}
}

// ReviewSyncRequest optionally narrows the sync to one product
type ReviewSyncRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
}

// Sync imports reviews of one product, or of every active product when
// the body names none
//
//	POST /admin/reviews/sync
func (h *ReviewHandler) Sync(c *gin.Context) {
	var req ReviewSyncRequest
	if !h.BindJSON(c, &req, true) {
		return
	}
	ctx := c.Request.Context()
	if req.ProductID != nil {
		result, err := h.syncer.SyncProduct(ctx, *req.ProductID)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, result)
		return
	}
	result, err := h.syncer.SyncAll(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
