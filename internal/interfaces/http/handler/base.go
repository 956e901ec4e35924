package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/analytics/internal/domain/shared"
	"github.com/erp/analytics/internal/infrastructure/logger"
	"github.com/erp/analytics/internal/interfaces/http/dto"
	"github.com/erp/analytics/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 response describing binding failures
func (h *BaseHandler) ValidationError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError converts an application error to an HTTP response.
// data, when non-nil, is returned alongside the error (e.g. a partial write count).
func (h *BaseHandler) HandleError(c *gin.Context, err error, data ...any) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code, message := dto.ErrCodeInternal, "An unexpected error occurred"

	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		code, message = dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code, message = dto.ErrCodeSourceUnavailable, "Request was cancelled before the data source answered"
	}

	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	if len(data) > 0 {
		resp.Data = data[0]
	}
	c.JSON(status, resp)
}
