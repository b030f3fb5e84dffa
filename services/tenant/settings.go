package main

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/utils"
)

// MercadoPagoRequest sets a tenant's processor credentials. Empty secret
// fields keep the stored value.
type MercadoPagoRequest struct {
	AccessToken   string `json:"access_token"`
	PublicKey     string `json:"public_key"`
	WebhookSecret string `json:"webhook_secret"`
	Sandbox       *bool  `json:"sandbox"`
}

// handleGetSettings returns the tenant's nested settings
func handleGetSettings(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		settings, err := tenant.GetSettings()
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		utils.OKResponse(c, "Settings retrieved successfully", settings)
	}
}

// handleUpdateSettings replaces the tenant's settings document
func handleUpdateSettings(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TenantSettings
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		before, err := tenant.GetSettings()
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if req.Features == nil {
			req.Features = map[string]bool{}
		}
		if err := tenant.SetSettings(req); err != nil {
			utils.AbortWithError(c, err)
			return
		}

		err = core.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(tenant).Update("settings", tenant.Settings).Error; err != nil {
				return err
			}
			entry := middleware.AuditEntry(c, "tenants.settings.update", "tenant_settings", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.Before = before
			entry.After = req
			return core.Audit.RecordTx(tx, middleware.PrincipalFromContext(c), entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Settings updated successfully", req)
	}
}

// handleGetMercadoPago returns the tenant's processor config with secrets masked
func handleGetMercadoPago(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		cfg, err := findMercadoPagoConfig(core.DB.WithContext(c.Request.Context()), tenant)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if cfg == nil {
			utils.NotFoundResponse(c, "MercadoPago not configured")
			return
		}
		utils.OKResponse(c, "MercadoPago configuration retrieved", cfg.Masked())
	}
}

// handleUpdateMercadoPago creates or updates the processor config
func handleUpdateMercadoPago(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MercadoPagoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		tenant, ok := ownedTenant(c, core.DB)
		if !ok {
			return
		}
		actor := middleware.PrincipalFromContext(c)

		var saved models.MercadoPagoConfig
		err := core.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			existing, err := findMercadoPagoConfig(tx, tenant)
			if err != nil {
				return err
			}

			cfg := models.MercadoPagoConfig{TenantID: tenant.ID, Sandbox: true}
			var before interface{}
			if existing != nil {
				cfg = *existing
				before = existing.Masked()
			}
			if token := strings.TrimSpace(req.AccessToken); token != "" {
				cfg.AccessToken = token
			}
			if req.PublicKey != "" {
				cfg.PublicKey = strings.TrimSpace(req.PublicKey)
			}
			if req.WebhookSecret != "" {
				cfg.WebhookSecret = req.WebhookSecret
			}
			if req.Sandbox != nil {
				cfg.Sandbox = *req.Sandbox
			}
			if cfg.AccessToken == "" {
				return utils.BadRequest("access_token is required")
			}
			cfg.UpdatedAt = time.Now()

			err = tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"access_token", "public_key", "webhook_secret", "sandbox", "updated_at"}),
			}).Create(&cfg).Error
			if err != nil {
				return err
			}
			saved = cfg

			entry := middleware.AuditEntry(c, "tenants.mercadopago.update", "mercadopago_config", tenant.ID.String())
			entry.TenantID = &tenant.ID
			entry.Before = before
			entry.After = cfg.Masked()
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "MercadoPago configuration saved", saved.Masked())
	}
}

func findMercadoPagoConfig(db *gorm.DB, tenant *models.Tenant) (*models.MercadoPagoConfig, error) {
	var cfg models.MercadoPagoConfig
	err := db.Where("tenant_id = ?", tenant.ID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
