package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/audit"
)

// AuditEntry starts an audit entry carrying the request's client address
func AuditEntry(c *gin.Context, action, resourceType, resourceID string) audit.Entry {
	return audit.Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	}
}
