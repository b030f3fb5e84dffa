package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/middleware"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/payments"
	"github.com/tallerops/admin-console/shared/server"
	"github.com/tallerops/admin-console/shared/tenancy"
	"github.com/tallerops/admin-console/shared/utils"
)

// Processor is the part of the payment processor client the handlers use
type Processor interface {
	GetPayment(ctx context.Context, accessToken, externalID string) (*payments.RemotePayment, error)
	RefundPayment(ctx context.Context, accessToken, externalID string) (*payments.Refund, error)
}

// RefundRequest carries the mandatory refund reason
type RefundRequest struct {
	Reason string `json:"reason"`
}

// handleListPayments lists payments of the principal's tenant
func handleListPayments(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		var requested *uuid.UUID
		if raw := c.Query("tenant_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid tenant_id")
				return
			}
			requested = &id
		}
		scope, err := tenancy.EnforceTenantScope(middleware.PrincipalFromContext(c), requested)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}

		q := core.DB.WithContext(c.Request.Context()).Model(&models.Payment{}).Scopes(tenancy.Scope(scope))
		if status := c.Query("status"); status != "" {
			q = q.Where("status = ?", status)
		}

		var list []models.Payment
		if err := q.Order("created_at DESC").Find(&list).Error; err != nil {
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Payments retrieved successfully", list)
	}
}

// handleGetPayment returns one payment
func handleGetPayment(core *server.Core) gin.HandlerFunc {
	return func(c *gin.Context) {
		payment, ok := ownedPayment(c, core.DB)
		if !ok {
			return
		}
		utils.OKResponse(c, "Payment retrieved successfully", payment)
	}
}

// handleRefund refunds an approved payment at the processor, then records
// the new status and its audit entry together
func handleRefund(core *server.Core, processor Processor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "Invalid request format")
			return
		}
		reason := strings.TrimSpace(req.Reason)
		if reason == "" {
			utils.BadRequestResponse(c, "A refund reason is required")
			return
		}

		payment, ok := ownedPayment(c, core.DB)
		if !ok {
			return
		}
		if !payment.Refundable() {
			utils.ConflictResponse(c, "Only approved payments can be refunded")
			return
		}
		ctx := c.Request.Context()
		actor := middleware.PrincipalFromContext(c)

		cfg, err := mercadoPagoConfig(core.DB.WithContext(ctx), payment.TenantID)
		if err != nil {
			utils.AbortWithError(c, err)
			return
		}
		if _, err := processor.RefundPayment(ctx, cfg.AccessToken, payment.ExternalID); err != nil {
			abortWithProcessorError(c, err)
			return
		}

		before := map[string]interface{}{"status": payment.Status}
		now := time.Now()
		payment.Status = models.PaymentRefunded
		payment.RefundReason = reason
		payment.RefundedAt = &now

		err = core.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Payment{}).
				Where("id = ? AND status = ?", payment.ID, models.PaymentApproved).
				Updates(map[string]interface{}{
					"status":        payment.Status,
					"refund_reason": payment.RefundReason,
					"refunded_at":   payment.RefundedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return utils.Conflict("Payment was changed by another request")
			}
			entry := middleware.AuditEntry(c, "payments.refund", "payment", payment.ID.String())
			entry.TenantID = &payment.TenantID
			entry.Before = before
			entry.After = map[string]interface{}{"status": payment.Status, "reason": reason}
			return core.Audit.RecordTx(tx, actor, entry)
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"payment_id":  payment.ID,
				"external_id": payment.ExternalID,
				"error":       err,
			}).Error("Refund issued at processor but not recorded locally")
			utils.AbortWithError(c, err)
			return
		}

		utils.OKResponse(c, "Payment refunded successfully", payment)
	}
}

// ownedPayment loads the :id payment and checks tenant ownership
func ownedPayment(c *gin.Context, db *gorm.DB) (*models.Payment, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid payment ID")
		return nil, false
	}

	var payment models.Payment
	err = db.WithContext(c.Request.Context()).Where("id = ?", id).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.NotFoundResponse(c, "Payment not found")
		return nil, false
	}
	if err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}
	if err := tenancy.CheckOwnership(middleware.PrincipalFromContext(c), payment.TenantID); err != nil {
		utils.AbortWithError(c, err)
		return nil, false
	}
	return &payment, true
}

func mercadoPagoConfig(db *gorm.DB, tenantID uuid.UUID) (*models.MercadoPagoConfig, error) {
	var cfg models.MercadoPagoConfig
	err := db.Where("tenant_id = ?", tenantID).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.Conflict("MercadoPago is not configured for this tenant")
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func abortWithProcessorError(c *gin.Context, err error) {
	var statusErr *payments.StatusError
	switch {
	case errors.Is(err, payments.ErrNotFound):
		utils.NotFoundResponse(c, "Payment not found at processor")
		c.Abort()
	case errors.As(err, &statusErr) && statusErr.StatusCode < 500:
		logrus.WithFields(logrus.Fields{"status": statusErr.StatusCode, "body": statusErr.Body}).Warn("Processor rejected request")
		utils.ErrorResponse(c, http.StatusBadGateway, "Payment processor rejected the request")
		c.Abort()
	default:
		if !errors.Is(err, utils.ErrCircuitOpen) && !errors.Is(err, utils.ErrProbeInFlight) {
			logrus.WithField("error", err).Error("Payment processor request failed")
			utils.ErrorResponse(c, http.StatusBadGateway, "Payment processor unavailable")
			c.Abort()
			return
		}
		utils.AbortWithError(c, err)
	}
}
