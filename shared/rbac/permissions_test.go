package rbac

import (
	"errors"
	"testing"

	"github.com/tallerops/admin-console/shared/models"
)

func TestCapabilitiesFor_Table(t *testing.T) {
	want := map[models.UserRole][]Capability{
		models.RoleSuperAdmin: AllCapabilities(),
		models.RoleAdmin: {
			TenantsRead,
			UsersRead, UsersWrite, UsersDelete, UsersInvite,
			PaymentsRead, PaymentsRefund,
			OperationsRead, OperationsExport,
			AuditRead, AuditExport,
			ConfigRead, ConfigWrite,
			MercadoPagoRead, MercadoPagoWrite,
		},
		models.RoleOperator: {TenantsRead, UsersRead, PaymentsRead, OperationsRead, OperationsExport, ConfigRead},
		models.RoleViewer:   {TenantsRead, UsersRead, PaymentsRead, OperationsRead, ConfigRead},
	}

	for role, caps := range want {
		got := CapabilitiesFor(role)
		if len(got) != len(caps) {
			t.Fatalf("%s: expected %d capabilities, got %d (%v)", role, len(caps), len(got), got)
		}
		for i := range caps {
			if got[i] != caps[i] {
				t.Fatalf("%s: expected %s at %d, got %s", role, caps[i], i, got[i])
			}
		}
	}
}

func TestCapabilitiesFor_UnknownRoleIsEmpty(t *testing.T) {
	for _, role := range []models.UserRole{"", "owner", "SUPERADMIN"} {
		got := CapabilitiesFor(role)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty set for %q, got %v", role, got)
		}
	}
}

func TestCapabilitiesFor_ReturnsCopy(t *testing.T) {
	caps := CapabilitiesFor(models.RoleViewer)
	caps[0] = AuditExport
	if Has(models.RoleViewer, AuditExport) {
		t.Fatalf("mutating the returned slice changed the table")
	}
}

func TestAuthorize_MatchesTableForEveryRoleAndCapability(t *testing.T) {
	for _, role := range Roles() {
		granted := map[Capability]bool{}
		for _, c := range CapabilitiesFor(role) {
			granted[c] = true
		}
		for _, c := range AllCapabilities() {
			err := Authorize(&models.Principal{Role: role}, c)
			if granted[c] && err != nil {
				t.Fatalf("%s/%s: expected allow, got %v", role, c, err)
			}
			if !granted[c] && !errors.Is(err, ErrForbidden) {
				t.Fatalf("%s/%s: expected forbidden, got %v", role, c, err)
			}
		}
	}
}

func TestAuthorize_ViewerCannotWriteUsers(t *testing.T) {
	err := Authorize(&models.Principal{Role: models.RoleViewer}, UsersWrite)
	authzErr, ok := IsAuthzError(err)
	if !ok {
		t.Fatalf("expected authz error, got %v", err)
	}
	if authzErr.Code != CodeForbidden || authzErr.Capability != UsersWrite {
		t.Fatalf("expected FORBIDDEN users:write, got %s %s", authzErr.Code, authzErr.Capability)
	}
}

func TestAuthorize_NoRequirement(t *testing.T) {
	if err := Authorize(&models.Principal{Role: models.RoleViewer}, ""); err != nil {
		t.Fatalf("expected allow, got %v", err)
	}
}

func TestAuthorize_NilPrincipal(t *testing.T) {
	if err := Authorize(nil, TenantsRead); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if _, err := ParseRole("operator"); err != nil {
		t.Fatalf("expected operator to parse, got %v", err)
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestValidateTable(t *testing.T) {
	if err := validateTable(); err != nil {
		t.Fatalf("expected the shipped table to be valid, got %v", err)
	}

	saved := rolePermissions[models.RoleViewer]
	defer func() { rolePermissions[models.RoleViewer] = saved }()

	rolePermissions[models.RoleViewer] = append(CapabilitiesFor(models.RoleViewer), Capability("billing:read"))
	if err := validateTable(); err == nil {
		t.Fatalf("expected an unknown capability to be rejected")
	}

	delete(rolePermissions, models.RoleViewer)
	if err := validateTable(); err == nil {
		t.Fatalf("expected a missing role row to be rejected")
	}
}
