package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant represents a workshop business using the console
type Tenant struct {
	ID              uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Name            string         `json:"name" gorm:"not null"`
	Slug            string         `json:"slug" gorm:"type:varchar(120);uniqueIndex;not null"`
	Plan            PlanTier       `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	Status          TenantStatus   `json:"status" gorm:"type:varchar(20);not null;default:'trial';index"`
	TrialEndsAt     *time.Time     `json:"trial_ends_at,omitempty"`
	SuspendedReason string         `json:"suspended_reason,omitempty"`
	MaxUsers        int            `json:"max_users" gorm:"not null;default:3"`
	MaxLocations    int            `json:"max_locations" gorm:"not null;default:1"`
	Settings        datatypes.JSON `json:"settings"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Users []Principal `json:"users,omitempty" gorm:"foreignKey:TenantID"`
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// BeforeCreate assigns an id when the caller did not
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TenantStatus is the billing/access state of a tenant
type TenantStatus string

const (
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusTrial, TenantStatusActive, TenantStatusSuspended, TenantStatusCancelled:
		return true
	}
	return false
}

// PlanTier is the commercial plan of a tenant. Tiers are ordered.
type PlanTier string

const (
	PlanFree         PlanTier = "free"
	PlanStarter      PlanTier = "starter"
	PlanProfessional PlanTier = "professional"
	PlanEnterprise   PlanTier = "enterprise"
)

// Rank orders plan tiers; unknown tiers rank below free.
func (p PlanTier) Rank() int {
	switch p {
	case PlanFree:
		return 0
	case PlanStarter:
		return 1
	case PlanProfessional:
		return 2
	case PlanEnterprise:
		return 3
	}
	return -1
}

// Valid reports whether p is a known tier
func (p PlanTier) Valid() bool {
	return p.Rank() >= 0
}

// PlanQuota holds the default limits of a plan tier
type PlanQuota struct {
	MaxUsers     int
	MaxLocations int
}

var planQuotas = map[PlanTier]PlanQuota{
	PlanFree:         {MaxUsers: 3, MaxLocations: 1},
	PlanStarter:      {MaxUsers: 10, MaxLocations: 2},
	PlanProfessional: {MaxUsers: 50, MaxLocations: 10},
	PlanEnterprise:   {MaxUsers: 500, MaxLocations: 100},
}

// DefaultQuota returns the limits a freshly created tenant on plan p gets
func DefaultQuota(p PlanTier) PlanQuota {
	if q, ok := planQuotas[p]; ok {
		return q
	}
	return planQuotas[PlanFree]
}

// TenantSettings is the nested feature/notification configuration
type TenantSettings struct {
	Features      map[string]bool      `json:"features"`
	Notifications NotificationSettings `json:"notifications"`
	Timezone      string               `json:"timezone,omitempty"`
	Currency      string               `json:"currency,omitempty"`
}

// NotificationSettings controls outbound notices for a tenant
type NotificationSettings struct {
	Email           bool   `json:"email"`
	WhatsApp        bool   `json:"whatsapp"`
	PaymentReceipts bool   `json:"payment_receipts"`
	ContactEmail    string `json:"contact_email,omitempty"`
}

// DefaultTenantSettings returns the settings a new tenant starts with
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		Features: map[string]bool{
			"work_orders": true,
			"payments":    true,
			"inventory":   false,
		},
		Notifications: NotificationSettings{Email: true, PaymentReceipts: true},
		Timezone:      "America/Argentina/Buenos_Aires",
		Currency:      "ARS",
	}
}

// GetSettings decodes the stored settings, falling back to the defaults
func (t *Tenant) GetSettings() (TenantSettings, error) {
	if len(t.Settings) == 0 {
		return DefaultTenantSettings(), nil
	}
	var s TenantSettings
	if err := json.Unmarshal(t.Settings, &s); err != nil {
		return TenantSettings{}, err
	}
	if s.Features == nil {
		s.Features = map[string]bool{}
	}
	return s, nil
}

// SetSettings encodes s into the settings column
func (t *Tenant) SetSettings(s TenantSettings) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	t.Settings = datatypes.JSON(b)
	return nil
}
