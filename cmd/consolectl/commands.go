package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/audit"
	"github.com/tallerops/admin-console/shared/auth"
	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/store"
)

func createSuperAdmin(ctx context.Context, db *gorm.DB, cfg *config.AppConfig, email, name, password string) (*models.Principal, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(password) < auth.MinPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	p := &models.Principal{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleSuperAdmin,
		Active:       true,
	}
	recorder := audit.NewRecorder(audit.NewGormStore(db))

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		taken, err := st.EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("a principal with email %s already exists", email)
		}
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		if err := rbac.NewBootstrapGate(cfg.BootstrapAdminEmail, st).Consume(ctx, "consolectl"); err != nil {
			return err
		}
		return recorder.RecordTx(tx, nil, audit.Entry{
			Action:       "users.create_superadmin",
			ResourceType: "user",
			ResourceID:   p.ID.String(),
			After:        map[string]interface{}{"email": p.Email, "role": p.Role},
			UserAgent:    "consolectl",
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func issueToken(ctx context.Context, db *gorm.DB, cfg *config.AppConfig, userID, ttl string) (string, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", fmt.Errorf("invalid user id: %w", err)
	}
	lifetime, err := time.ParseDuration(ttl)
	if err != nil || lifetime <= 0 {
		return "", fmt.Errorf("invalid ttl %q", ttl)
	}

	p, err := store.New(db).FindActivePrincipal(ctx, id)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", errors.New("principal not found or blocked")
	}

	token, _, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer).Issue(p, lifetime)
	return token, err
}

// writeRoleTable prints one line per role, most privileged first
func writeRoleTable(w io.Writer) {
	for _, role := range rbac.Roles() {
		caps := rbac.CapabilitiesFor(role)
		names := make([]string, len(caps))
		for i, c := range caps {
			names[i] = string(c)
		}
		fmt.Fprintf(w, "%-10s %d/%d  %s\n", role, len(caps), len(rbac.AllCapabilities()), strings.Join(names, " "))
	}
}
