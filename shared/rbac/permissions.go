// Package rbac holds the role → capability table and the gates that
// consult it. The table is the single source of truth for what a role may do.
package rbac

import (
	"fmt"

	"github.com/tallerops/admin-console/shared/models"
)

// Capability is a resource:action permission token. The strings are part of
// the public API: clients use them to decide which actions to render.
type Capability string

const (
	TenantsRead   Capability = "tenants:read"
	TenantsWrite  Capability = "tenants:write"
	TenantsDelete Capability = "tenants:delete"

	UsersRead   Capability = "users:read"
	UsersWrite  Capability = "users:write"
	UsersDelete Capability = "users:delete"
	UsersInvite Capability = "users:invite"

	PaymentsRead   Capability = "payments:read"
	PaymentsRefund Capability = "payments:refund"

	OperationsRead   Capability = "operations:read"
	OperationsExport Capability = "operations:export"

	AuditRead   Capability = "audit:read"
	AuditExport Capability = "audit:export"

	ConfigRead  Capability = "config:read"
	ConfigWrite Capability = "config:write"

	MercadoPagoRead  Capability = "mercadopago:read"
	MercadoPagoWrite Capability = "mercadopago:write"
)

var allCapabilities = []Capability{
	TenantsRead, TenantsWrite, TenantsDelete,
	UsersRead, UsersWrite, UsersDelete, UsersInvite,
	PaymentsRead, PaymentsRefund,
	OperationsRead, OperationsExport,
	AuditRead, AuditExport,
	ConfigRead, ConfigWrite,
	MercadoPagoRead, MercadoPagoWrite,
}

// AllCapabilities returns every known capability in declaration order
func AllCapabilities() []Capability {
	out := make([]Capability, len(allCapabilities))
	copy(out, allCapabilities)
	return out
}

var rolePermissions = map[models.UserRole][]Capability{
	models.RoleSuperAdmin: allCapabilities,
	models.RoleAdmin: {
		TenantsRead,
		UsersRead, UsersWrite, UsersDelete, UsersInvite,
		PaymentsRead, PaymentsRefund,
		OperationsRead, OperationsExport,
		AuditRead, AuditExport,
		ConfigRead, ConfigWrite,
		MercadoPagoRead, MercadoPagoWrite,
	},
	models.RoleOperator: {
		TenantsRead,
		UsersRead,
		PaymentsRead,
		OperationsRead, OperationsExport,
		ConfigRead,
	},
	models.RoleViewer: {
		TenantsRead,
		UsersRead,
		PaymentsRead,
		OperationsRead,
		ConfigRead,
	},
}

func init() {
	if err := validateTable(); err != nil {
		panic(err)
	}
}

// validateTable checks that every role has a row and grants only known
// capabilities
func validateTable() error {
	known := make(map[Capability]bool, len(allCapabilities))
	for _, c := range AllCapabilities() {
		known[c] = true
	}
	if len(rolePermissions) != len(Roles()) {
		return fmt.Errorf("rbac: %d permission rows for %d roles", len(rolePermissions), len(Roles()))
	}
	for _, role := range Roles() {
		perms, ok := rolePermissions[role]
		if !ok {
			return fmt.Errorf("rbac: role %s has no permission row", role)
		}
		for _, c := range perms {
			if !known[c] {
				return fmt.Errorf("rbac: role %s grants unknown capability %q", role, c)
			}
		}
	}
	return nil
}

// CapabilitiesFor returns the ordered capability set granted to role.
// Unknown roles get nothing.
func CapabilitiesFor(role models.UserRole) []Capability {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Capability{}
	}
	out := make([]Capability, len(perms))
	copy(out, perms)
	return out
}

// Has reports whether role is granted c
func Has(role models.UserRole, c Capability) bool {
	for _, p := range rolePermissions[role] {
		if p == c {
			return true
		}
	}
	return false
}

// ParseRole converts a wire string into a role
func ParseRole(s string) (models.UserRole, error) {
	r := models.UserRole(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Roles returns every known role, most privileged first
func Roles() []models.UserRole {
	return []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleOperator, models.RoleViewer}
}
