// Package tenancy enforces tenant boundaries and the tenant lifecycle.
// Every tenant-scoped query or mutation passes through EnforceTenantScope
// (list predicates) or CheckOwnership (single rows).
package tenancy

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
)

// ErrTenantMismatch is returned when a principal reaches outside its tenant
var ErrTenantMismatch = &rbac.AuthzError{Code: rbac.CodeTenantMismatch, Err: rbac.ErrForbidden}

// EnforceTenantScope resolves the tenant a request may operate on.
// Superadmins get what they asked for (nil = all tenants). Everyone else is
// pinned to their own tenant and asking for another one is an error, never a
// silent reassignment.
func EnforceTenantScope(p *models.Principal, requested *uuid.UUID) (*uuid.UUID, error) {
	if p == nil {
		return nil, ErrTenantMismatch
	}
	if p.Role.IsGlobal() {
		return requested, nil
	}
	if p.TenantID == nil {
		return nil, ErrTenantMismatch
	}
	if requested != nil && *requested != *p.TenantID {
		return nil, ErrTenantMismatch
	}
	own := *p.TenantID
	return &own, nil
}

// CheckOwnership verifies p may see or touch a row owned by resourceTenantID
func CheckOwnership(p *models.Principal, resourceTenantID uuid.UUID) error {
	if p == nil {
		return ErrTenantMismatch
	}
	if p.Role.IsGlobal() {
		return nil
	}
	if !p.BelongsTo(resourceTenantID) {
		return ErrTenantMismatch
	}
	return nil
}

// CheckOptionalOwnership is CheckOwnership for rows whose tenant is nullable.
// Untenanted rows are visible to everyone.
func CheckOptionalOwnership(p *models.Principal, resourceTenantID *uuid.UUID) error {
	if resourceTenantID == nil {
		if p == nil {
			return ErrTenantMismatch
		}
		return nil
	}
	return CheckOwnership(p, *resourceTenantID)
}

// Scope narrows a query to tenantID. A nil tenant adds no predicate.
func Scope(tenantID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == nil {
			return db
		}
		return db.Where("tenant_id = ?", *tenantID)
	}
}

// ScopeWithShared narrows a query to tenantID plus untenanted rows
func ScopeWithShared(tenantID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == nil {
			return db
		}
		return db.Where("tenant_id = ? OR tenant_id IS NULL", *tenantID)
	}
}
