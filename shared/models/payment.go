package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment is a charge processed by the payment processor on behalf of a tenant
type Payment struct {
	ID           uuid.UUID     `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID     `json:"tenant_id" gorm:"type:uuid;not null;index"`
	ExternalID   string        `json:"external_id" gorm:"type:varchar(100);uniqueIndex;not null"`
	Amount       float64       `json:"amount" gorm:"not null"`
	Currency     string        `json:"currency" gorm:"type:varchar(3);not null;default:'ARS'"`
	Status       PaymentStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	PayerEmail   string        `json:"payer_email"`
	Description  string        `json:"description"`
	RefundReason string        `json:"refund_reason,omitempty"`
	RefundedAt   *time.Time    `json:"refunded_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PaymentStatus mirrors the processor's payment states
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentApproved  PaymentStatus = "approved"
	PaymentRejected  PaymentStatus = "rejected"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Refundable reports whether the payment can still be refunded
func (p *Payment) Refundable() bool {
	return p.Status == PaymentApproved
}

// MercadoPagoConfig holds a tenant's payment processor credentials
type MercadoPagoConfig struct {
	TenantID      uuid.UUID `json:"tenant_id" gorm:"type:uuid;primaryKey"`
	AccessToken   string    `json:"access_token" gorm:"not null"`
	PublicKey     string    `json:"public_key"`
	WebhookSecret string    `json:"-"`
	Sandbox       bool      `json:"sandbox" gorm:"not null"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (MercadoPagoConfig) TableName() string {
	return "mercadopago_configs"
}

// Masked returns a copy safe to hand to clients
func (c MercadoPagoConfig) Masked() MercadoPagoConfig {
	c.AccessToken = maskSecret(c.AccessToken)
	c.WebhookSecret = ""
	return c
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
