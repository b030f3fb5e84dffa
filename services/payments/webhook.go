package main

import (
	"crypto/subtle"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/audit"
	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/store"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

const webhookSecretHeader = "X-Webhook-Secret"

// WebhookNotification is the envelope of a processor notification. Only the
// resource type and id are read; the current state is fetched from the API.
type WebhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// handleWebhook refreshes a payment after a processor notification. An
// approved payment takes a tenant out of trial. Notifications for a known
// payment are checked against its tenant's webhook secret, or the platform
// one when the tenant has none; everything else against the platform one.
func handleWebhook(core *server.Core, processor Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		given := c.GetHeader(webhookSecretHeader)
		reject := func() {
			logrus.WithField("client_ip", c.ClientIP()).Warn("Webhook rejected: bad secret")
			utils.UnauthorizedResponse(c, "Invalid webhook secret")
		}

		var note WebhookNotification
		if err := c.ShouldBindJSON(&note); err != nil || note.Data.ID == "" {
			if !secretMatches(core.Config.MercadoPagoWebhookSecret, given) {
				reject()
				return
			}
			utils.BadRequestResponse(c, "Invalid notification")
			return
		}
		ctx := c.Request.Context()
		log := logrus.WithField("external_id", note.Data.ID)

		var payment models.Payment
		err := core.DB.WithContext(ctx).Where("external_id = ?", note.Data.ID).First(&payment).Error
		if note.Type != "payment" || errors.Is(err, gorm.ErrRecordNotFound) {
			if !secretMatches(core.Config.MercadoPagoWebhookSecret, given) {
				reject()
				return
			}
			log.WithField("type", note.Type).Info("Webhook ignored")
			utils.OKResponse(c, "Notification ignored", nil)
			return
		}
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		cfg, err := mercadoPagoConfig(core.DB.WithContext(ctx), payment.TenantID)
		if err != nil {
			if !secretMatches(core.Config.MercadoPagoWebhookSecret, given) {
				reject()
				return
			}
			utils.AbortWithError(c, err)
			return
		}
		expected := cfg.WebhookSecret
		if expected == "" {
			expected = core.Config.MercadoPagoWebhookSecret
		}
		if !secretMatches(expected, given) {
			reject()
			return
		}

		remote, err := processor.GetPayment(ctx, cfg.AccessToken, payment.ExternalID)
		if err != nil {
			abortWithProcessorError(c, err)
			return
		}

		status := remote.LocalStatus()
		if status == payment.Status {
			utils.OKResponse(c, "Payment unchanged", payment)
			return
		}
		previous := payment.Status
		payment.Status = status

		err = core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Payment{}).
				Where("id = ? AND status = ?", payment.ID, previous).
				Update("status", status)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.Conflict("Payment changed while processing the notification")
			}
			entry := middleware.AuditEntry(c, "payments.status_change", "payment", payment.ID.String())
			entry.TenantID = &payment.TenantID
			entry.Before = map[string]interface{}{"status": previous}
			entry.After = map[string]interface{}{"status": status}
			if err := core.Audit.RecordTx(tx, nil, entry); err != nil {
				return err
			}
			if status == models.PaymentApproved {
				return activateTrialTenant(c, core, tx, &payment)
			}
			return nil
		})
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		log.WithFields(logrus.Fields{"from": previous, "to": status}).Info("Payment status refreshed")
		utils.OKResponse(c, "Payment updated", payment)
	}
}

func activateTrialTenant(c *gin.Context, core *server.Core, tx *gorm.DB, payment *models.Payment) error {
	tenant, err := store.New(tx).LockTenant(c.Request.Context(), payment.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil || tenant.Status != models.TenantStatusTrial {
		return nil
	}
	err = tenancy.SaveTransition(tx, tenant, models.TenantStatusActive, "")
	if errors.Is(err, tenancy.ErrInvalidTransition) {
		logrus.WithField("tenant_id", tenant.ID).Info("Tenant left trial concurrently, activation skipped")
		return nil
	}
	if err != nil {
		return err
	}

	entry := audit.Entry{
		Action:       "tenants.activate",
		ResourceType: "tenant",
		ResourceID:   tenant.ID.String(),
		TenantID:     &tenant.ID,
		Before:       map[string]interface{}{"status": models.TenantStatusTrial},
		After:        map[string]interface{}{"status": tenant.Status, "payment_id": payment.ID},
		IPAddress:    c.ClientIP(),
	}
	logrus.WithField("tenant_id", tenant.ID).Info("Tenant activated by approved payment")
	return core.Audit.RecordTx(tx, nil, entry)
}

func secretMatches(expected, given string) bool {
	return expected != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}
