package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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

// InviteUserRequest adds a principal to a tenant
type InviteUserRequest struct {
	Name     string     `json:"name" binding:"required"`
	Email    string     `json:"email" binding:"required,email"`
	Password string     `json:"password" binding:"required,min=8"`
	Role     string     `json:"role" binding:"required"`
	TenantID *uuid.UUID `json:"tenant_id"`
}

// UpdateUserRequest changes a principal's name or role
type UpdateUserRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

// handleListUsers lists principals of the requested or own tenant
func handleListUsers(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		requested, err := optionalUUID(c.Query("tenant_id"))
		if err != nil {
			utils.BadRequestResponse(c, "Invalid tenant_id")
			return
		}
		scope, err := tenancy.EnforceTenantScope(middleware.PrincipalFromContext(c), requested)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		q := core.DB.WithContext(c.Request.Context()).Model(&models.Principal{}).Scopes(tenancy.Scope(scope))
		if role := c.Query("role"); role != "" {
			q = q.Where("role = ?", role)
		}
		if active := c.Query("active"); active != "" {
			q = q.Where("active = ?", active == "true")
		}

		var users []models.Principal
		if err := q.Order("created_at ASC").Find(&users).Error; err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Users retrieved successfully", users)
	}
}

// handleGetUser returns one principal
func handleGetUser(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := reachableUser(c, core.DB)
		if !ok {
			return
		}
		utils.OKResponse(c, "User retrieved successfully", user)
	}
}

// handleInviteUser creates a principal inside a tenant, within the plan quota
func handleInviteUser(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InviteUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		role, err := rbac.ParseRole(req.Role)
		if err != nil {
			utils.BadRequestResponse(c, "Unknown role")
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		var tenantID *uuid.UUID
		if role == models.RoleSuperAdmin {
			if err := core.Bootstrap.RequireSuperAdmin(ctx, actor); err != nil {
				utils.AbortWithError(c, err)
				return
			}
		} else {
			tenantID, err = tenancy.EnforceTenantScope(actor, req.TenantID)
			if err != nil {
				utils.AbortWithError(c, err)
				return
			}
			if tenantID == nil {
				utils.BadRequestResponse(c, "tenant_id is required")
				return
			}
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		var user *models.Principal
		err = core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txStore := store.New(tx)
			email := strings.ToLower(strings.TrimSpace(req.Email))
			taken, err := txStore.EmailExists(ctx, email)
			if err != nil {
				return err
			}
			if taken {
				return utils.Conflict("Email already registered")
			}

			if tenantID != nil {
				if err := checkUserQuota(ctx, txStore, *tenantID); err != nil {
					return err
				}
			}

			now := time.Now()
			user = &models.Principal{
				TenantID:     tenantID,
				Name:         strings.TrimSpace(req.Name),
				Email:        email,
				PasswordHash: hash,
				Role:         role,
				Active:       true,
				InvitedAt:    &now,
			}
			if err := tx.Create(user).Error; err != nil {
				return err
			}
			if role == models.RoleSuperAdmin {
				if err := rbac.NewBootstrapGate(core.Config.BootstrapAdminEmail, txStore).Consume(ctx, actor.Email); err != nil {
					return err
				}
			}

			entry := middleware.AuditEntry(c, "users.invite", "user", user.ID.String())
			entry.TenantID = tenantID
			entry.After = userSummary(user)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.CreatedResponse(c, "User invited successfully", user)
	}
}

// handleUpdateUser changes name and role. Granting superadmin is reserved to
// superadmins and closes the bootstrap path.
func handleUpdateUser(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		user, ok := reachableUser(c, core.DB)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)
		before := userSummary(user)

		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			user.Name = strings.TrimSpace(*req.Name)
		}

		promoting := false
		if req.Role != nil {
			role, err := rbac.ParseRole(*req.Role)
			if err != nil {
				utils.BadRequestResponse(c, "Unknown role")
				return
			}
			if role == models.RoleSuperAdmin || user.Role == models.RoleSuperAdmin {
				if err := core.Bootstrap.RequireSuperAdmin(ctx, actor); err != nil {
					utils.AbortWithError(c, err)
					return
				}
			}
			if user.Role == models.RoleSuperAdmin && role != models.RoleSuperAdmin && user.TenantID == nil {
				utils.BadRequestResponse(c, "A superadmin without a tenant cannot be demoted")
				return
			}
			promoting = role == models.RoleSuperAdmin && user.Role != models.RoleSuperAdmin
			user.Role = role
			if promoting {
				user.TenantID = nil
			}
		}

		err := core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(user).Select("name", "role", "tenant_id").Updates(user).Error; err != nil {
				return err
			}
			if promoting {
				if err := rbac.NewBootstrapGate(core.Config.BootstrapAdminEmail, store.New(tx)).Consume(ctx, actor.Email); err != nil {
					return err
				}
			}
			entry := middleware.AuditEntry(c, "users.update", "user", user.ID.String())
			entry.TenantID = auditTenant(before, user)
			entry.Before = before
			entry.After = userSummary(user)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "User updated successfully", user)
	}
}

// handleSetActive blocks or unblocks a principal
func handleSetActive(core *server.Core, active bool) gin.HandlerFunc {
	action := "users.block"
	if active {
		action = "users.unblock"
	}
	return func(c *gin.Context) {
		user, ok := reachableUser(c, core.DB)
		if !ok {
			return
		}
		actor := middleware.PrincipalFromContext(c)
		if user.ID == actor.ID {
			utils.BadRequestResponse(c, "You cannot block or unblock yourself")
			return
		}
		if user.Role == models.RoleSuperAdmin && !actor.IsSuperAdmin() {
			utils.AbortWithError(c, rbac.Forbidden(rbac.UsersWrite))
			return
		}
		before := map[string]interface{}{"active": user.Active}

		err := core.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(user).Update("active", active).Error; err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, action, "user", user.ID.String())
			entry.TenantID = user.TenantID
			entry.Before = before
			entry.After = map[string]interface{}{"active": active}
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		user.Active = active
		utils.OKResponse(c, "User updated successfully", user)
	}
}

// handleDeleteUser removes a principal
func handleDeleteUser(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := reachableUser(c, core.DB)
		if !ok {
			return
		}
		actor := middleware.PrincipalFromContext(c)
		if user.ID == actor.ID {
			utils.BadRequestResponse(c, "You cannot delete yourself")
			return
		}
		if user.Role == models.RoleSuperAdmin && !actor.IsSuperAdmin() {
			utils.AbortWithError(c, rbac.Forbidden(rbac.UsersDelete))
			return
		}

		err := core.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(user).Error; err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, "users.delete", "user", user.ID.String())
			entry.TenantID = user.TenantID
			entry.Before = userSummary(user)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "User deleted successfully", nil)
	}
}

// reachableUser loads the :id principal and checks tenant ownership. Only
// superadmins may see principals without a tenant.
func reachableUser(c *gin.Context, db *gorm.DB) (*models.Principal, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID")
		return nil, false
	}

	var user models.Principal
	err = db.WithContext(c.Request.Context()).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.NotFoundResponse(c, "User not found")
		return nil, false
	}
	if err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}

	actor := middleware.PrincipalFromContext(c)
	if user.TenantID == nil {
		if !actor.Role.IsGlobal() {
			utils.AbortWithError(c, tenancy.ErrTenantMismatch)
			return nil, false
		}
	} else if err := tenancy.CheckOwnership(actor, *user.TenantID); err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}
	return &user, true
}

// checkUserQuota must run inside the inserting transaction; the tenant row
// lock serializes concurrent invites into one tenant.
func checkUserQuota(ctx context.Context, st *store.Store, tenantID uuid.UUID) error {
	tenant, err := st.LockTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return tenancy.ErrTenantNotFound
	}
	if tenant.MaxUsers <= 0 {
		return nil
	}
	count, err := st.CountTenantUsers(ctx, tenantID)
	if err != nil {
		return err
	}
	if count >= int64(tenant.MaxUsers) {
		return utils.Conflict("User quota for this plan reached")
	}
	return nil
}

func userSummary(u *models.Principal) map[string]interface{} {
	summary := map[string]interface{}{
		"name":   u.Name,
		"email":  u.Email,
		"role":   u.Role,
		"active": u.Active,
	}
	if u.TenantID != nil {
		summary["tenant_id"] = u.TenantID.String()
	}
	return summary
}

// auditTenant picks the tenant a user change belongs to, before a promotion
// cleared it
func auditTenant(before map[string]interface{}, u *models.Principal) *uuid.UUID {
	if u.TenantID != nil {
		return u.TenantID
	}
	if s, ok := before["tenant_id"].(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			return &id
		}
	}
	return nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
