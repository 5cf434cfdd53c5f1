package handler

import (
	"errors"
	"net/http"

	"github.com/dropship/backend/internal/application/catalogsync"
	"github.com/dropship/backend/internal/application/fulfillment"
	"github.com/dropship/backend/internal/domain/shared"
	"github.com/dropship/backend/internal/domain/supplier"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/interfaces/http/dto"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// BindJSON binds the request body and answers 400 on failure. An empty
// body is accepted when optional is set.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any, optional bool) bool {
	if optional && c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// ParamUUID parses a UUID path parameter and answers 400 when malformed
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// HandleError converts application errors to HTTP responses. Domain errors
// carry their own code; supplier failures surface as gateway errors.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.ErrorWithCode(c, code, domainErr.Message)
	case errors.Is(err, catalogsync.ErrSyncInProgress):
		h.ErrorWithCode(c, dto.ErrCodeSyncInProgress, "A pass is already running for this scope")
	case supplier.IsFatal(err):
		h.ErrorWithCode(c, dto.ErrCodeSupplierConfig, "Supplier platform rejected our credentials")
	case errors.Is(err, supplier.ErrRateLimited):
		h.ErrorWithCode(c, dto.ErrCodeRateLimited, "Supplier platform rate limit reached")
	case errors.Is(err, fulfillment.ErrSubmissionFailed),
		errors.Is(err, fulfillment.ErrTrackingFailed),
		errors.Is(err, catalogsync.ErrListingFailed),
		isSupplierError(err):
		h.ErrorWithCode(c, dto.ErrCodeSupplier, err.Error())
	default:
		logger.FromContextOr(c.Request.Context(), zap.L()).Error("request failed", zap.Error(err))
		h.ErrorWithCode(c, dto.ErrCodeInternal, "An internal error occurred")
	}
}

func isSupplierError(err error) bool {
	for _, target := range []error{
		supplier.ErrUnavailable,
		supplier.ErrInvalidResponse,
		supplier.ErrRejected,
		supplier.ErrProductNotFound,
		supplier.ErrOrderNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
