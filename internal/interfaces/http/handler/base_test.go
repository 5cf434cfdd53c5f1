package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped domain error", fmt.Errorf("load: %w", shared.NewDomainError("NOT_PAID", "Order is not paid")), http.StatusUnprocessableEntity, dto.ErrCodeNotPaid},
		{"unmapped domain code", shared.NewDomainError("SLUG_EXHAUSTED", "no slug"), http.StatusUnprocessableEntity, dto.ErrCodeBusinessRule},
		{"concurrency", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"sync in progress", catalogsync.ErrSyncInProgress, http.StatusConflict, dto.ErrCodeSyncInProgress},
		{"auth failure", fmt.Errorf("list: %w", supplier.ErrAuthFailed), http.StatusServiceUnavailable, dto.ErrCodeSupplierConfig},
		{"rate limited", supplier.ErrRateLimited, http.StatusTooManyRequests, dto.ErrCodeRateLimited},
		{"submission", fmt.Errorf("%w: %w", fulfillment.ErrSubmissionFailed, supplier.ErrRejected), http.StatusBadGateway, dto.ErrCodeSupplier},
		{"listing", catalogsync.ErrListingFailed, http.StatusBadGateway, dto.ErrCodeSupplier},
		{"bare supplier error", supplier.ErrUnavailable, http.StatusBadGateway, dto.ErrCodeSupplier},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h := &BaseHandler{}
			h.HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}

	t.Run("internal errors hide the message", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		(&BaseHandler{}).HandleError(c, errors.New("password=hunter2"))
		assert.NotContains(t, w.Body.String(), "hunter2")
	})
}

func TestParamUUID(t *testing.T) {
	router := gin.New()
	h := &BaseHandler{}
	router.GET("/orders/:id", func(c *gin.Context) {
		if id, ok := h.ParamUUID(c, "id"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	w := perform(t, router, http.MethodGet, "/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(t, router, http.MethodGet, "/orders/6f1c1f8e-2f57-4d8e-9a55-3a3f0c0c9e01", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6f1c1f8e-2f57-4d8e-9a55-3a3f0c0c9e01", w.Body.String())
}
