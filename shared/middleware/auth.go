package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tallerops/admin-console/shared/metrics"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/utils"
)

const (
	principalKey  = "principal"
	credentialKey = "credential"
)

// Authenticator resolves a bearer credential to a live principal
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*models.Principal, error)
}

// SuperAdminGate decides whether a principal may use platform-level routes
type SuperAdminGate interface {
	RequireSuperAdmin(ctx context.Context, p *models.Principal) error
}

// TenantGate rejects principals whose tenant is not in good standing
type TenantGate interface {
	Check(ctx context.Context, p *models.Principal) error
}

// AuthMiddleware builds the access-control chain for a service
type AuthMiddleware struct {
	authenticator Authenticator
	superAdmin    SuperAdminGate
	tenants       TenantGate
}

// NewAuthMiddleware wires the middleware. superAdmin and tenants may be nil
// for services that never use those checks.
func NewAuthMiddleware(authenticator Authenticator, superAdmin SuperAdminGate, tenants TenantGate) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		superAdmin:    superAdmin,
		tenants:       tenants,
	}
}

// RequireAuth resolves the Authorization header and stores the principal
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			utils.UnauthorizedResponse(c, "Authentication required")
			c.Abort()
			return
		}

		principal, err := am.authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Set(credentialKey, token)
		c.Set("user_id", principal.ID.String())
		c.Set("role", string(principal.Role))
		if principal.TenantID != nil {
			c.Set("tenant_id", principal.TenantID.String())
		}

		c.Next()
	}
}

// RequireCapability rejects principals whose role lacks capability
func (am *AuthMiddleware) RequireCapability(capability rbac.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := rbac.Authorize(PrincipalFromContext(c), capability); err != nil {
			metrics.AuthzDenials.WithLabelValues(rbac.CodeForbidden, string(capability)).Inc()
			utils.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireSuperAdmin admits superadmins and, while open, the bootstrap principal
func (am *AuthMiddleware) RequireSuperAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.superAdmin == nil {
			utils.AbortWithError(c, rbac.ErrForbidden)
			return
		}
		if err := am.superAdmin.RequireSuperAdmin(c.Request.Context(), PrincipalFromContext(c)); err != nil {
			if _, ok := rbac.IsAuthzError(err); ok {
				metrics.AuthzDenials.WithLabelValues(rbac.CodeNotSuperAdmin, "").Inc()
			}
			utils.AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireActiveTenant rejects traffic of suspended or cancelled tenants
func (am *AuthMiddleware) RequireActiveTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.tenants != nil {
			if err := am.tenants.Check(c.Request.Context(), PrincipalFromContext(c)); err != nil {
				utils.AbortWithError(c, err)
				return
			}
		}
		c.Next()
	}
}

// PrincipalFromContext returns the principal set by RequireAuth, or nil
func PrincipalFromContext(c *gin.Context) *models.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*models.Principal)
	return p
}

// CredentialFromContext returns the raw bearer token of the request
func CredentialFromContext(c *gin.Context) string {
	return c.GetString(credentialKey)
}

// SetPrincipal stores p on the context; used by tests and internal callers
func SetPrincipal(c *gin.Context, p *models.Principal) {
	c.Set(principalKey, p)
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return ""
	}
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return authHeader
}
