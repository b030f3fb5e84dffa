package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Principal is a console user: a human actor with a role and an optional
// tenant affiliation. Only superadmins have no tenant.
type Principal struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID       *uuid.UUID `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Name           string     `json:"name" gorm:"not null"`
	Email          string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"type:varchar(255)"`
	Role           UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'viewer'"`
	Active         bool       `json:"active" gorm:"not null;default:true"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	InvitedAt      *time.Time `json:"invited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Tenant *Tenant `json:"tenant,omitempty" gorm:"foreignKey:TenantID"`
}

func (Principal) TableName() string {
	return "users"
}

// BeforeCreate assigns an id when the caller did not
func (p *Principal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsSuperAdmin reports whether the principal is a global superadmin
func (p *Principal) IsSuperAdmin() bool {
	return p != nil && p.Role == RoleSuperAdmin
}

// BelongsTo reports whether the principal is affiliated with tenantID
func (p *Principal) BelongsTo(tenantID uuid.UUID) bool {
	return p != nil && p.TenantID != nil && *p.TenantID == tenantID
}

// UserRole is the closed set of console roles
type UserRole string

const (
	RoleSuperAdmin UserRole = "superadmin"
	RoleAdmin      UserRole = "admin"
	RoleOperator   UserRole = "operator"
	RoleViewer     UserRole = "viewer"
)

// Valid reports whether r is one of the known roles
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// IsGlobal reports whether the role spans all tenants
func (r UserRole) IsGlobal() bool {
	return r == RoleSuperAdmin
}

// BootstrapState records the one-time consumption of the bootstrap admin path
type BootstrapState struct {
	ID         int       `json:"id" gorm:"primaryKey"`
	ConsumedAt time.Time `json:"consumed_at"`
	ConsumedBy string    `json:"consumed_by"`
}

func (BootstrapState) TableName() string {
	return "bootstrap_state"
}
