package rbac

import (
	"errors"
	"fmt"

	"github.com/tallerops/admin-console/shared/models"
)

// ErrForbidden is the sentinel every authorization failure unwraps to
var ErrForbidden = errors.New("forbidden")

const (
	CodeForbidden      = "FORBIDDEN"
	CodeTenantMismatch = "TENANT_MISMATCH"
	CodeNotSuperAdmin  = "NOT_SUPERADMIN"
)

// AuthzError carries the reason an access decision failed
type AuthzError struct {
	Code       string
	Capability Capability
	Err        error
}

func (e *AuthzError) Error() string {
	if e == nil {
		return ""
	}
	if e.Capability != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Capability)
	}
	return e.Code
}

func (e *AuthzError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsAuthzError extracts an AuthzError from err's chain
func IsAuthzError(err error) (*AuthzError, bool) {
	var authz *AuthzError
	if errors.As(err, &authz) {
		return authz, true
	}
	return nil, false
}

// Forbidden builds the error returned when capability c is missing
func Forbidden(c Capability) error {
	return &AuthzError{Code: CodeForbidden, Capability: c, Err: ErrForbidden}
}

// Authorize allows p to exercise c iff the permission table grants c to p's
// role. An empty capability means the route has no requirement.
func Authorize(p *models.Principal, c Capability) error {
	if c == "" {
		return nil
	}
	if p == nil || !Has(p.Role, c) {
		return Forbidden(c)
	}
	return nil
}
