package handler

import (
	"context"
	"time"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogSyncer runs sync and reprice passes
type CatalogSyncer interface {
	Run(ctx context.Context, opts catalogsync.Options) (*catalogsync.Result, error)
	Reprice(ctx context.Context, override *pricing.Config) (*catalogsync.Result, error)
}

// StockChecker refreshes stock of one or all products
type StockChecker interface {
	Check(ctx context.Context, productID *uuid.UUID) (*catalogsync.StockResult, error)
}

// PricingOverrides resolves a partial pricing override against the
// active policy
type PricingOverrides interface {
	PricingWithOverrides(ctx context.Context, overrides map[string]any) (pricing.Config, error)
}

// SyncHandler serves the catalog sync triggers
type SyncHandler struct {
	BaseHandler
	engine   CatalogSyncer
	stock    StockChecker
	runs     catalog.SyncRunRepository
	settings PricingOverrides
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(engine CatalogSyncer, stock StockChecker, runs catalog.SyncRunRepository, settings PricingOverrides) *SyncHandler {
	return &SyncHandler{engine: engine, stock: stock, runs: runs, settings: settings}
}

// RepriceRequest optionally overrides pricing fields for one pass
type RepriceRequest struct {
	Pricing map[string]any `json:"pricing"`
}

// StockCheckRequest optionally narrows a stock check to one product
type StockCheckRequest struct {
	ProductID *uuid.UUID `json:"product_id"`
}

// SyncRunResponse is one recorded pass
type SyncRunResponse struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	Phase      string     `json:"phase"`
	Status     string     `json:"status"`
	Scope      string     `json:"scope,omitempty"`
	Synced     int        `json:"synced"`
	Updated    int        `json:"updated"`
	Unchanged  int        `json:"unchanged"`
	Hidden     int        `json:"hidden"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`
}

func toSyncRunResponse(r catalog.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:         r.ID,
		Kind:       r.Kind,
		Phase:      string(r.Phase),
		Status:     string(r.Status),
		Scope:      r.Scope,
		Synced:     r.Synced,
		Updated:    r.Updated,
		Unchanged:  r.Unchanged,
		Hidden:     r.Hidden,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
}

// Sync runs a catalog sync pass. The body is optional.
//
//	POST /admin/sync
func (h *SyncHandler) Sync(c *gin.Context) {
	var opts catalogsync.Options
	if !h.BindJSON(c, &opts, true) {
		return
	}
	result, err := h.engine.Run(c.Request.Context(), opts)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Reprice recomputes prices of every listed product
//
//	POST /admin/reprice
func (h *SyncHandler) Reprice(c *gin.Context) {
	var req RepriceRequest
	if !h.BindJSON(c, &req, true) {
		return
	}

	var override *pricing.Config
	if len(req.Pricing) > 0 {
		cfg, err := h.settings.PricingWithOverrides(c.Request.Context(), req.Pricing)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		override = &cfg
	}

	result, err := h.engine.Reprice(c.Request.Context(), override)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// CheckStock refreshes stock of one product or all listed products
//
//	POST /admin/stock/check
func (h *SyncHandler) CheckStock(c *gin.Context) {
	var req StockCheckRequest
	if !h.BindJSON(c, &req, true) {
		return
	}
	result, err := h.stock.Check(c.Request.Context(), req.ProductID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListRuns pages through recorded passes, newest first
//
//	GET /admin/sync/runs
func (h *SyncHandler) ListRuns(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	filter := shared.Filter{
		Page:     max(req.Page, 1),
		PageSize: req.PageSize,
		OrderBy:  "started_at",
		OrderDir: "desc",
	}
	if filter.PageSize == 0 {
		filter.PageSize = 20
	}

	runs, total, err := h.runs.FindRecent(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]SyncRunResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, toSyncRunResponse(r))
	}
	h.SuccessWithMeta(c, out, total, filter.Page, filter.PageSize)
}
