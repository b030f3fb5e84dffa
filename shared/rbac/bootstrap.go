package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/models"
)

// BootstrapStore answers whether the bootstrap path is still open
type BootstrapStore interface {
	SuperAdminExists(ctx context.Context) (bool, error)
	BootstrapConsumed(ctx context.Context) (bool, error)
	ConsumeBootstrap(ctx context.Context, by string) error
}

// BootstrapGate implements RequireSuperAdmin. A configured bootstrap email
// may act as superadmin only until the first real superadmin exists; after
// that the path is consumed for good.
type BootstrapGate struct {
	email string
	store BootstrapStore
}

// NewBootstrapGate creates a gate. An empty email disables the bootstrap path.
func NewBootstrapGate(bootstrapEmail string, store BootstrapStore) *BootstrapGate {
	return &BootstrapGate{
		email: normalizeEmail(bootstrapEmail),
		store: store,
	}
}

// RequireSuperAdmin allows only global superadmins, plus the bootstrap
// principal while the bootstrap path is open.
func (g *BootstrapGate) RequireSuperAdmin(ctx context.Context, p *models.Principal) error {
	if p == nil {
		return &AuthzError{Code: CodeNotSuperAdmin, Err: ErrForbidden}
	}
	if p.Role == models.RoleSuperAdmin {
		return nil
	}
	open, err := g.bootstrapOpen(ctx, p)
	if err != nil {
		return err
	}
	if open {
		logrus.WithFields(logrus.Fields{
			"user_id": p.ID,
			"email":   p.Email,
		}).Warn("Superadmin access granted through bootstrap email")
		return nil
	}
	return &AuthzError{Code: CodeNotSuperAdmin, Err: ErrForbidden}
}

// IsBootstrapPrincipal reports whether p is currently let through by the
// bootstrap path rather than by its role
func (g *BootstrapGate) IsBootstrapPrincipal(ctx context.Context, p *models.Principal) (bool, error) {
	if p == nil || p.Role == models.RoleSuperAdmin {
		return false, nil
	}
	return g.bootstrapOpen(ctx, p)
}

// Consume closes the bootstrap path permanently
func (g *BootstrapGate) Consume(ctx context.Context, by string) error {
	if g.store == nil {
		return nil
	}
	consumed, err := g.store.BootstrapConsumed(ctx)
	if err != nil {
		return fmt.Errorf("check bootstrap state: %w", err)
	}
	if consumed {
		return nil
	}
	if err := g.store.ConsumeBootstrap(ctx, by); err != nil {
		return fmt.Errorf("consume bootstrap: %w", err)
	}
	logrus.WithField("consumed_by", by).Info("Bootstrap path closed")
	return nil
}

func (g *BootstrapGate) bootstrapOpen(ctx context.Context, p *models.Principal) (bool, error) {
	if g.email == "" || g.store == nil {
		return false, nil
	}
	if normalizeEmail(p.Email) != g.email {
		return false, nil
	}
	consumed, err := g.store.BootstrapConsumed(ctx)
	if err != nil {
		return false, fmt.Errorf("check bootstrap state: %w", err)
	}
	if consumed {
		return false, nil
	}
	exists, err := g.store.SuperAdminExists(ctx)
	if err != nil {
		return false, fmt.Errorf("check superadmins: %w", err)
	}
	return !exists, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
