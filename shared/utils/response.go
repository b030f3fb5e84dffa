package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/auth"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/tenancy"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Error:   message,
	})
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message)
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusUnauthorized, message)
}

// ForbiddenResponse sends a 403 Forbidden response
func ForbiddenResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusForbidden, message)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusNotFound, message)
}

// ConflictResponse sends a 409 Conflict response
func ConflictResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusConflict, message)
}

// InternalServerErrorResponse sends a 500 Internal Server Error response
func InternalServerErrorResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusInternalServerError, message)
}

// ServiceUnavailableResponse sends a 503 Service Unavailable response
func ServiceUnavailableResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusServiceUnavailable, message)
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusCreated, message, data)
}

// OKResponse sends a 200 OK response
func OKResponse(c *gin.Context, message string, data interface{}) {
	SuccessResponse(c, http.StatusOK, message, data)
}

// TenantNotice is the payload of a suspended/cancelled tenant rejection
type TenantNotice struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name,omitempty"`
	Message    string `json:"message"`
}

// AbortWithError maps access-control failures onto responses and aborts the
// chain. Authentication and authorization details are logged but the caller
// only sees a generic message; tenant lifecycle rejections are rich so the UI
// can render a notice.
func AbortWithError(c *gin.Context, err error) {
	entry := logrus.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("request_id"),
		"error":      err.Error(),
	})

	var suspended *tenancy.TenantSuspendedError
	var cancelled *tenancy.TenantCancelledError

	if reqErr, ok := IsRequestError(err); ok {
		ErrorResponse(c, reqErr.Status, reqErr.Message)
		c.Abort()
		return
	}

	switch {
	case auth.IsAuthError(err):
		entry.Info("Authentication rejected")
		UnauthorizedResponse(c, "Authentication required")
	case errors.As(err, &suspended):
		entry.Info("Tenant suspended")
		c.JSON(http.StatusForbidden, APIResponse{
			Success: false,
			Error:   "Tenant suspended",
			Code:    "TENANT_SUSPENDED",
			Data: TenantNotice{
				TenantID:   suspended.TenantID.String(),
				TenantName: suspended.TenantName,
				Message:    suspended.Message(),
			},
		})
	case errors.As(err, &cancelled):
		entry.Info("Tenant cancelled")
		c.JSON(http.StatusForbidden, APIResponse{
			Success: false,
			Error:   "Tenant cancelled",
			Code:    "TENANT_CANCELLED",
			Data: TenantNotice{
				TenantID: cancelled.TenantID.String(),
				Message:  "La cuenta fue dada de baja.",
			},
		})
	case errors.Is(err, rbac.ErrForbidden):
		if authzErr, ok := rbac.IsAuthzError(err); ok {
			entry = entry.WithFields(logrus.Fields{"code": authzErr.Code, "capability": authzErr.Capability})
		}
		entry.Warn("Authorization denied")
		ForbiddenResponse(c, "Insufficient permissions")
	case errors.Is(err, tenancy.ErrInvalidTransition):
		ConflictResponse(c, err.Error())
	case errors.Is(err, tenancy.ErrReasonRequired):
		BadRequestResponse(c, "A suspension reason is required")
	case errors.Is(err, tenancy.ErrTenantNotFound):
		NotFoundResponse(c, "Tenant not found")
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrProbeInFlight):
		ServiceUnavailableResponse(c, "Payment processor temporarily unavailable")
	default:
		entry.Error("Request failed")
		InternalServerErrorResponse(c, "Internal server error")
	}
	c.Abort()
}
