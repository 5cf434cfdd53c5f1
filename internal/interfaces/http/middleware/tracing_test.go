package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRouter(t *testing.T, enabled bool) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	router := gin.New()
	router.Use(
		Tracing(TracingConfig{ServiceName: "dropship-test", Enabled: enabled, TracerProvider: tp}),
		func(c *gin.Context) { c.Set("request_id", "req-42"); c.Next() },
		SpanEnricher(),
	)
	router.GET("/products/:slug", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.POST("/orders/:id/submit", func(c *gin.Context) {
		_ = c.Error(assert.AnError)
		c.Status(http.StatusBadGateway)
	})
	return router, sr
}

func TestTracing(t *testing.T) {
	t.Run("disabled records nothing", func(t *testing.T) {
		router, sr := newTracedRouter(t, false)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/linen-shirt", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, sr.Ended())
	})

	t.Run("span named after the route", func(t *testing.T) {
		router, sr := newTracedRouter(t, true)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/linen-shirt", nil))

		require.Len(t, sr.Ended(), 1)
		span := sr.Ended()[0]
		assert.Equal(t, "GET /products/:slug", span.Name())
		assert.Contains(t, span.Attributes(), attribute.String("request_id", "req-42"))
		assert.NotEqual(t, codes.Error, span.Status().Code)
	})

	t.Run("supplier failure marks the span", func(t *testing.T) {
		router, sr := newTracedRouter(t, true)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/1/submit", nil))

		require.Len(t, sr.Ended(), 1)
		span := sr.Ended()[0]
		assert.Equal(t, codes.Error, span.Status().Code)
		require.NotEmpty(t, span.Events())
		assert.Equal(t, "exception", span.Events()[0].Name)
	})
}
