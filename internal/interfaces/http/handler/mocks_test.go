package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/application/review"
	appshipping "github.com/dropship/backend/internal/application/shipping"
	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/domain/pricing"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/shipping"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// perform sends a JSON request through the router
func perform(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes the response data into out
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NoError(t, json.Unmarshal(resp.Data, out))
}

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) Run(ctx context.Context, opts catalogsync.Options) (*catalogsync.Result, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Result), args.Error(1)
}

func (m *mockSyncer) Reprice(ctx context.Context, override *pricing.Config) (*catalogsync.Result, error) {
	args := m.Called(ctx, override)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.Result), args.Error(1)
}

type mockStock struct{ mock.Mock }

func (m *mockStock) Check(ctx context.Context, productID *uuid.UUID) (*catalogsync.StockResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalogsync.StockResult), args.Error(1)
}

type mockRuns struct{ mock.Mock }

func (m *mockRuns) Save(ctx context.Context, run *catalog.SyncRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockRuns) FindRecent(ctx context.Context, filter shared.Filter) ([]catalog.SyncRun, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]catalog.SyncRun), args.Get(1).(int64), args.Error(2)
}

type mockSettings struct{ mock.Mock }

func (m *mockSettings) Pricing(ctx context.Context) pricing.Config {
	return m.Called(ctx).Get(0).(pricing.Config)
}

func (m *mockSettings) Shipping(ctx context.Context) shipping.Config {
	return m.Called(ctx).Get(0).(shipping.Config)
}

func (m *mockSettings) UpdatePricing(ctx context.Context, overrides map[string]any) (pricing.Config, error) {
	args := m.Called(ctx, overrides)
	return args.Get(0).(pricing.Config), args.Error(1)
}

func (m *mockSettings) UpdateShipping(ctx context.Context, overrides map[string]any) (shipping.Config, error) {
	args := m.Called(ctx, overrides)
	return args.Get(0).(shipping.Config), args.Error(1)
}

func (m *mockSettings) PricingWithOverrides(ctx context.Context, overrides map[string]any) (pricing.Config, error) {
	args := m.Called(ctx, overrides)
	return args.Get(0).(pricing.Config), args.Error(1)
}

type mockFulfiller struct{ mock.Mock }

func (m *mockFulfiller) orderResult(args mock.Arguments) (*fulfillment.OrderResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.OrderResponse), args.Error(1)
}

func (m *mockFulfiller) Get(ctx context.Context, id uuid.UUID) (*fulfillment.OrderResponse, error) {
	return m.orderResult(m.Called(ctx, id))
}

func (m *mockFulfiller) History(ctx context.Context, id uuid.UUID) ([]order.TrackingEvent, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]order.TrackingEvent), args.Error(1)
}

func (m *mockFulfiller) Submit(ctx context.Context, id uuid.UUID) (*fulfillment.OrderResponse, error) {
	return m.orderResult(m.Called(ctx, id))
}

func (m *mockFulfiller) Poll(ctx context.Context, id uuid.UUID) (*fulfillment.PollResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.PollResponse), args.Error(1)
}

func (m *mockFulfiller) PollOpen(ctx context.Context) (*fulfillment.PollSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fulfillment.PollSummary), args.Error(1)
}

func (m *mockFulfiller) Cancel(ctx context.Context, id uuid.UUID, reason string) (*fulfillment.OrderResponse, error) {
	return m.orderResult(m.Called(ctx, id, reason))
}

func (m *mockFulfiller) Refund(ctx context.Context, id uuid.UUID, reason string) (*fulfillment.OrderResponse, error) {
	return m.orderResult(m.Called(ctx, id, reason))
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) SyncProduct(ctx context.Context, productID uuid.UUID) (*review.ProductResult, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.ProductResult), args.Error(1)
}

func (m *mockReviews) SyncAll(ctx context.Context) (*review.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*review.Result), args.Error(1)
}

type mockProducts struct{ mock.Mock }

func (m *mockProducts) FindBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

type mockVariants struct{ mock.Mock }

func (m *mockVariants) FindActiveByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.Variant, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]catalog.Variant), args.Error(1)
}

type mockEstimator struct{ mock.Mock }

func (m *mockEstimator) EstimateCart(ctx context.Context, country string, lines []appshipping.CartLine) (shipping.Quote, error) {
	args := m.Called(ctx, country, lines)
	return args.Get(0).(shipping.Quote), args.Error(1)
}
