// Package store implements the principal, tenant and bootstrap lookups on
// top of gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tallerops/admin-console/shared/models"
)

// Store wraps a gorm handle
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for transactional callers
func (s *Store) DB() *gorm.DB {
	return s.db
}

// FindActivePrincipal returns the active principal with id, or nil
func (s *Store) FindActivePrincipal(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	var p models.Principal
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindPrincipalByEmail returns the principal with email, active or not, or nil
func (s *Store) FindPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	var p models.Principal
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TouchLastActivity stamps the principal's last activity. It skips hooks and
// updated_at so it does not look like an administrative edit.
func (s *Store) TouchLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Principal{}).
		Where("id = ?", id).
		UpdateColumn("last_activity_at", at).Error
}

// FindTenant returns the tenant with id, or nil
func (s *Store) FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LockTenant is FindTenant holding a row lock until the surrounding
// transaction ends. SQLite drops the lock clause; it serializes writers anyway.
func (s *Store) LockTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SuperAdminExists reports whether an active superadmin exists
func (s *Store) SuperAdminExists(ctx context.Context) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Principal{}).
		Where("role = ? AND active = ?", models.RoleSuperAdmin, true).
		Count(&count).Error
	return count > 0, err
}

// BootstrapConsumed reports whether the bootstrap path was ever consumed
func (s *Store) BootstrapConsumed(ctx context.Context) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.BootstrapState{}).Count(&count).Error
	return count > 0, err
}

// ConsumeBootstrap writes the consumption marker. Only one row ever exists.
func (s *Store) ConsumeBootstrap(ctx context.Context, by string) error {
	state := models.BootstrapState{ID: 1, ConsumedAt: time.Now(), ConsumedBy: by}
	err := s.db.WithContext(ctx).Where(models.BootstrapState{ID: 1}).FirstOrCreate(&state).Error
	if err != nil {
		return fmt.Errorf("failed to persist bootstrap state: %w", err)
	}
	return nil
}

// CountTenantUsers returns how many principals belong to tenantID
func (s *Store) CountTenantUsers(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Principal{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// SlugExists reports whether any tenant, including deleted ones, uses slug
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Unscoped().Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// EmailExists reports whether a principal with email exists
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Principal{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
