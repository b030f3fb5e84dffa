package main

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/auth"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/store"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

var errEmailTaken = errors.New("email already registered")

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignupRequest represents a self-service workshop signup
type SignupRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string            `json:"access_token"`
	TokenType    string            `json:"token_type"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Principal    *models.Principal `json:"principal"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

// MeResponse is the current principal and what it may do
type MeResponse struct {
	Principal    *models.Principal `json:"principal"`
	Capabilities []rbac.Capability `json:"capabilities"`
	// BootstrapAccess is set while the principal may act as superadmin
	// through the bootstrap email
	BootstrapAccess bool `json:"bootstrap_access"`
}

// handleLogin exchanges email and password for a signed credential
func handleLogin(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		ctx := c.Request.Context()
		email := normalizeEmail(req.Email)

		principal, err := core.Store.FindPrincipalByEmail(ctx, email)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if principal == nil || auth.CheckPassword(principal.PasswordHash, req.Password) != nil {
			logrus.WithField("email", email).Info("Login rejected: invalid credentials")
			utils.UnauthorizedResponse(c, "Invalid credentials")
			return
		}
		if !principal.Active {
			logrus.WithField("principal_id", principal.ID).Info("Login rejected: principal blocked")
			utils.ForbiddenResponse(c, "Account is blocked")
			return
		}
		if err := core.Lifecycle.Check(ctx, principal); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		token, expiresAt, err := core.Issuer.Issue(principal, core.Config.TokenTTL)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		core.Audit.Record(ctx, principal, middleware.AuditEntry(c, "auth.login", "user", principal.ID.String()))

		principal.PasswordHash = ""
		utils.OKResponse(c, "Login successful", LoginResponse{
			AccessToken:  token,
			TokenType:    "Bearer",
			ExpiresAt:    expiresAt,
			Principal:    principal,
			Capabilities: rbac.CapabilitiesFor(principal.Role),
		})
	}
}

// handleSignup creates a trial tenant and its first admin in one transaction
func handleSignup(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		ctx := c.Request.Context()

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		var tenant *models.Tenant
		var admin *models.Principal
		err = core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txStore := store.New(tx)
			email := normalizeEmail(req.Email)
			taken, err := txStore.EmailExists(ctx, email)
			if err != nil {
				return err
			}
			if taken {
				return errEmailTaken
			}

			slug, err := tenancy.UniqueSlug(req.CompanyName, func(s string) (bool, error) {
				return txStore.SlugExists(ctx, s)
			})
			if err != nil {
				return err
			}

			tenant = tenancy.NewTenant(strings.TrimSpace(req.CompanyName), slug, models.PlanFree, time.Now(), core.Config.TrialPeriod)
			if err := tenant.SetSettings(models.DefaultTenantSettings()); err != nil {
				return err
			}
			if err := tx.Create(tenant).Error; err != nil {
				return err
			}

			tenantID := tenant.ID
			admin = &models.Principal{
				TenantID:     &tenantID,
				Name:         strings.TrimSpace(req.Name),
				Email:        email,
				PasswordHash: hash,
				Role:         models.RoleAdmin,
				Active:       true,
			}
			if err := tx.Create(admin).Error; err != nil {
				return err
			}

			entry := middleware.AuditEntry(c, "tenants.signup", "tenant", tenant.ID.String())
			entry.After = map[string]interface{}{
				"tenant": tenant,
				"admin":  map[string]interface{}{"id": admin.ID, "email": admin.Email, "role": admin.Role},
			}
			return core.Audit.RecordTx(tx, admin, entry)
		})
		if errors.Is(err, errEmailTaken) {
			utils.ConflictResponse(c, "Email already registered")
			return
		}
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		token, expiresAt, err := core.Issuer.Issue(admin, core.Config.TokenTTL)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"tenant_id": tenant.ID,
			"slug":      tenant.Slug,
		}).Info("Tenant signed up")

		admin.PasswordHash = ""
		utils.CreatedResponse(c, "Signup successful", gin.H{
			"tenant": tenant,
			"session": LoginResponse{
				AccessToken:  token,
				TokenType:    "Bearer",
				ExpiresAt:    expiresAt,
				Principal:    admin,
				Capabilities: rbac.CapabilitiesFor(admin.Role),
			},
		})
	}
}

// handleMe returns the authenticated principal and its capabilities
func handleMe(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := middleware.PrincipalFromContext(c)
		bootstrap, err := core.Bootstrap.IsBootstrapPrincipal(c.Request.Context(), principal)
		if err != nil {
			logrus.WithError(err).Warn("Failed to read bootstrap state")
		}
		utils.OKResponse(c, "Current principal", MeResponse{
			Principal:       principal,
			Capabilities:    rbac.CapabilitiesFor(principal.Role),
			BootstrapAccess: bootstrap,
		})
	}
}

// handleLogout revokes the presented credential until it would have expired
func handleLogout(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		principal := middleware.PrincipalFromContext(c)

		if core.Revocations == nil {
			logrus.Warn("Token revocation unavailable, logout is client-side only")
		} else {
			expiresAt := time.Now().Add(core.Config.TokenTTL)
			if err := core.Revocations.Revoke(ctx, middleware.CredentialFromContext(c), expiresAt); err != nil {
				utils.AbortWithError(c, err)
				return
			}
		}

		core.Audit.Record(ctx, principal, middleware.AuditEntry(c, "auth.logout", "user", principal.ID.String()))
		utils.OKResponse(c, "Logged out successfully", nil)
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
