package main

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/store"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

// CreateTenantRequest represents the create tenant request
type CreateTenantRequest struct {
	Name string          `json:"name" binding:"required"`
	Slug string          `json:"slug"`
	Plan models.PlanTier `json:"plan"`
}

// UpdateTenantRequest represents the update tenant request
type UpdateTenantRequest struct {
	Name         *string          `json:"name"`
	Plan         *models.PlanTier `json:"plan"`
	MaxUsers     *int             `json:"max_users"`
	MaxLocations *int             `json:"max_locations"`
}

// TransitionRequest carries the reason for a lifecycle change
type TransitionRequest struct {
	Reason string `json:"reason"`
}

var transitionTargets = map[string]models.TenantStatus{
	"activate": models.TenantStatusActive,
	"suspend":  models.TenantStatusSuspended,
	"cancel":   models.TenantStatusCancelled,
}

// handleCreateTenant creates a tenant in trial (superadmin only)
func handleCreateTenant(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if req.Plan != "" && !req.Plan.Valid() {
			utils.BadRequestResponse(c, "Unknown plan")
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		var tenant *models.Tenant
		err := core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			txStore := store.New(tx)
			slug := tenancy.Slugify(req.Slug)
			if slug != "" {
				taken, err := txStore.SlugExists(ctx, slug)
				if err != nil {
					return err
				}
				if taken {
					return utils.Conflict("Slug already exists")
				}
			} else {
				var err error
				slug, err = tenancy.UniqueSlug(req.Name, func(s string) (bool, error) {
					return txStore.SlugExists(ctx, s)
				})
				if err != nil {
					return err
				}
			}

			tenant = tenancy.NewTenant(strings.TrimSpace(req.Name), slug, req.Plan, time.Now(), core.Config.TrialPeriod)
			if err := tenant.SetSettings(models.DefaultTenantSettings()); err != nil {
				return err
			}
			if err := tx.Create(tenant).Error; err != nil {
				return err
			}

			entry := middleware.AuditEntry(c, "tenants.create", "tenant", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.After = tenant
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.CreatedResponse(c, "Tenant created successfully", tenant)
	}
}

// handleListTenants lists the tenants visible to the principal
func handleListTenants(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := tenancy.EnforceTenantScope(middleware.PrincipalFromContext(c), nil)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		q := core.DB.WithContext(c.Request.Context()).Model(&models.Tenant{})
		if scope != nil {
			q = q.Where("id = ?", *scope)
		}
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}
		if plan := c.Query("plan"); plan != "" {
			q = q.Where("plan = ?", plan)
		}

		var tenants []models.Tenant
		if err := q.Order("created_at DESC").Find(&tenants).Error; err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Tenants retrieved successfully", tenants)
	}
}

// handleGetTenant returns one tenant
func handleGetTenant(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		utils.OKResponse(c, "Tenant retrieved successfully", tenant)
	}
}

// handleUpdateTenant updates name, plan and quotas
func handleUpdateTenant(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		if req.Plan != nil && !req.Plan.Valid() {
			utils.BadRequestResponse(c, "Unknown plan")
			return
		}
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		actor := middleware.PrincipalFromContext(c)
		before := *tenant

		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			tenant.Name = strings.TrimSpace(*req.Name)
		}
		if req.Plan != nil && *req.Plan != tenant.Plan {
			quota := models.DefaultQuota(*req.Plan)
			tenant.Plan = *req.Plan
			tenant.MaxUsers = quota.MaxUsers
			tenant.MaxLocations = quota.MaxLocations
		}
		if req.MaxUsers != nil {
			tenant.MaxUsers = *req.MaxUsers
		}
		if req.MaxLocations != nil {
			tenant.MaxLocations = *req.MaxLocations
		}

		err := core.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(tenant).Select("name", "plan", "max_users", "max_locations").Updates(tenant).Error; err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, "tenants.update", "tenant", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.Before = tenantSummary(&before)
			entry.After = tenantSummary(tenant)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Tenant updated successfully", tenant)
	}
}

// handleDeleteTenant soft-deletes a tenant that has no users left
func handleDeleteTenant(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		err := core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users, err := store.New(tx).CountTenantUsers(ctx, tenant.ID)
			if err != nil {
				return err
			}
			if users > 0 {
				return utils.Conflict("Tenant still has users")
			}
			if err := tx.Delete(tenant).Error; err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, "tenants.delete", "tenant", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.Before = tenantSummary(tenant)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Tenant deleted successfully", nil)
	}
}

// handleTransition applies a lifecycle change (superadmin only)
func handleTransition(core *server.Core, action string) gin.HandlerFunc {
	to := transitionTargets[action]
	return func(c *gin.Context) {
		var req TransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				utils.BadRequestResponse(c, "Invalid request format")
				return
			}
		}
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		actor := middleware.PrincipalFromContext(c)
		ctx := c.Request.Context()

		err := core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := store.New(tx).LockTenant(ctx, tenant.ID)
			if err != nil {
				return err
			}
			if current == nil {
				return tenancy.ErrTenantNotFound
			}
			tenant = current
			before := lifecycleSnapshot(tenant)
			if err := tenancy.SaveTransition(tx, tenant, to, req.Reason); err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, "tenants."+action, "tenant", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.Before = before
			entry.After = lifecycleSnapshot(tenant)
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Tenant status updated", tenant)
	}
}

// ownedTenant loads the :id tenant and checks the principal may reach it.
// It writes the error response itself.
func ownedTenant(c *gin.Context, db *gorm.DB) (*models.Tenant, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid tenant ID")
		return nil, false
	}
	if err := tenancy.CheckOwnership(middleware.PrincipalFromContext(c), id); err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}

	var tenant models.Tenant
	err = db.WithContext(c.Request.Context()).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.AbortWithError(c, tenancy.ErrTenantNotFound)
		return nil, false
	}
	if err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}
	return &tenant, true
}

func tenantSummary(t *models.Tenant) map[string]interface{} {
	return map[string]interface{}{
		"name":          t.Name,
		"slug":          t.Slug,
		"plan":          t.Plan,
		"status":        t.Status,
		"max_users":     t.MaxUsers,
		"max_locations": t.MaxLocations,
	}
}

func lifecycleSnapshot(t *models.Tenant) map[string]interface{} {
	return map[string]interface{}{
		"status":           t.Status,
		"suspended_reason": t.SuspendedReason,
	}
}
