package telemetry_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropship/backend/internal/domain/catalog"
	"github.com/dropship/backend/internal/domain/order"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := telemetry.MetricsConfig{Enabled: false, ServiceName: "dropship"}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.Equal(t, "dropship", mp.GetConfig().ServiceName)
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestBusinessMetrics_NilMeter(t *testing.T) {
	_, err := telemetry.NewBusinessMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
}

func TestBusinessMetrics_Handle(t *testing.T) {
	reader, provider := newTestMeter(t)
	bm, err := telemetry.NewBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)
	ctx := context.Background()

	p := &catalog.Product{ExternalRef: "SKU-1"}
	p.ID = uuid.New()
	require.NoError(t, bm.Handle(ctx, catalog.NewProductCreatedEvent(p)))
	require.NoError(t, bm.Handle(ctx, catalog.NewProductStatusChangedEvent(p, catalog.ProductStatusPending, catalog.ProductStatusActive)))

	o := &order.Order{Number: "1001", FulfillmentStatus: order.FulfillmentShipped}
	o.ID = uuid.New()
	require.NoError(t, bm.Handle(ctx, order.NewFulfillmentChangedEvent(order.EventTypeOrderShipped, o, order.FulfillmentProcessing)))

	run := catalog.NewSyncRun("sync", "all")
	run.Synced, run.Updated = 3, 2
	run.Finish(catalog.SyncRunSuccess, "")
	require.NoError(t, bm.Handle(ctx, catalog.NewSyncRunFinishedEvent(run)))

	metrics := collect(t, reader)
	assert.Equal(t, int64(1), sumOf(t, metrics["dropship_products_created_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["dropship_product_status_changes_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["dropship_fulfillment_transitions_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["dropship_sync_runs_total"]))
	assert.Equal(t, int64(5), sumOf(t, metrics["dropship_sync_run_products_total"]))
	assert.Contains(t, metrics, "dropship_sync_run_duration_seconds")
}

type fakePool struct{ stats sql.DBStats }

func (f fakePool) Stats() sql.DBStats { return f.stats }

func TestRegisterDBPoolMetrics(t *testing.T) {
	reader, provider := newTestMeter(t)
	pool := fakePool{stats: sql.DBStats{MaxOpenConnections: 10, InUse: 2, Idle: 3, WaitCount: 7}}

	reg, err := telemetry.RegisterDBPoolMetrics(provider.Meter("test"), pool)
	require.NoError(t, err)
	defer func() { _ = reg.Unregister() }()

	metrics := collect(t, reader)
	gauge, ok := metrics["db_pool_connections"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range gauge.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(5), total)
	assert.Equal(t, int64(7), sumOf(t, metrics["db_pool_wait_total"]))
}

func TestHTTPMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reader, provider := newTestMeter(t)
	hm, err := telemetry.NewHTTPMetrics(provider.Meter("test"))
	require.NoError(t, err)

	r := gin.New()
	r.Use(hm.Middleware())
	r.GET("/products/:slug", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/products/a", "/products/b", "/nope"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	metrics := collect(t, reader)
	assert.Equal(t, int64(3), sumOf(t, metrics["http_requests_total"]))
	hist, ok := metrics["http_request_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2, "one series per route and status")
}
