package api

import (
	"artsheets/internal/catalog"
	"artsheets/internal/llm"
	"artsheets/internal/quota"
	"artsheets/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 错误码定义
const (
	// 通用错误码
	ErrCodeInvalidRequest     = "ERR_INVALID_REQUEST"
	ErrCodeUnauthorized       = "ERR_UNAUTHORIZED"
	ErrCodeForbidden          = "ERR_FORBIDDEN"
	ErrCodeNotFound           = "ERR_NOT_FOUND"
	ErrCodeInternalError      = "ERR_INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeRateLimited        = "ERR_RATE_LIMITED"

	// 认证错误码
	ErrCodeInvalidCredentials = "ERR_INVALID_CREDENTIALS"
	ErrCodeEmailExists        = "ERR_EMAIL_EXISTS"
	ErrCodeUserDisabled       = "ERR_USER_DISABLED"
	ErrCodeSessionExpired     = "ERR_SESSION_EXPIRED"

	// 资源错误码
	ErrCodeSheetNotFound        = "ERR_SHEET_NOT_FOUND"
	ErrCodeUserNotFound         = "ERR_USER_NOT_FOUND"
	ErrCodeQuotaAccountNotFound = "ERR_QUOTA_ACCOUNT_NOT_FOUND"

	// 业务逻辑错误码
	ErrCodeMissingField        = "ERR_MISSING_FIELD"
	ErrCodeCannotDeleteSelf    = "ERR_CANNOT_DELETE_SELF"
	ErrCodeInsufficientCredits = "ERR_INSUFFICIENT_CREDITS"
	ErrCodeGenerationFailed    = "ERR_GENERATION_FAILED"
	ErrCodePersistenceFailed   = "ERR_PERSISTENCE_FAILED"
)

// APIError 统一的 API 错误响应结构
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse 返回统一格式的错误响应
func ErrorResponse(c *gin.Context, status int, code string, message string) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
	})
}

// ErrorResponseWithDetails 返回带详情的错误响应
func ErrorResponseWithDetails(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, APIError{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// BadRequest 400 错误请求
func BadRequest(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusBadRequest, code, message)
}

// Unauthorized 401 未授权
func Unauthorized(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden 403 禁止访问
func Forbidden(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound 404 资源不存在
func NotFound(c *gin.Context, code string, message string) {
	ErrorResponse(c, http.StatusNotFound, code, message)
}

// InternalError 500 服务器内部错误
func InternalError(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable 503 服务不可用
func ServiceUnavailable(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// MissingField 缺少必填字段
func MissingField(c *gin.Context, field string) {
	ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeMissingField, field+" is required", gin.H{"field": field})
}

// InvalidPayload 无效的请求体
func InvalidPayload(c *gin.Context) {
	ErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request payload")
}

// respondGenerationError maps a failure of the generation flow to its HTTP response.
func respondGenerationError(c *gin.Context, err error) {
	var (
		invalid      *catalog.InvalidRequestError
		insufficient *quota.InsufficientCreditsError
		backendErr   *llm.GenerationBackendError
		persistErr   *service.PersistenceError
	)
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		Unauthorized(c, "authentication required")
	case errors.As(err, &invalid):
		ErrorResponseWithDetails(c, http.StatusBadRequest, ErrCodeInvalidRequest, invalid.Error(),
			gin.H{"field": invalid.Field, "reason": invalid.Reason})
	case errors.As(err, &insufficient):
		ErrorResponseWithDetails(c, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "not enough credits",
			gin.H{"required": insufficient.Required, "available": insufficient.Available})
	case errors.As(err, &backendErr):
		ErrorResponseWithDetails(c, http.StatusBadGateway, ErrCodeGenerationFailed, "sheet generation failed",
			gin.H{"backend": backendErr.Backend, "cause": causeMessage(backendErr.Cause)})
	case errors.As(err, &persistErr):
		message := "sheets were generated but could not be saved; no credits were charged"
		if !persistErr.Refunded {
			message = "sheets were generated but could not be saved; reserved credits will be returned shortly"
		}
		ErrorResponseWithDetails(c, http.StatusInternalServerError, ErrCodePersistenceFailed, message,
			gin.H{"credits_refunded": persistErr.Refunded, "generated": persistErr.GeneratedCount})
	default:
		logrus.WithError(err).Error("unexpected generation error")
		InternalError(c, "failed to generate sheets")
	}
}

func causeMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
