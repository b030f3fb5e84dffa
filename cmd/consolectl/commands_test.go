package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tallerops/admin-console/shared/auth"
	"github.com/tallerops/admin-console/shared/config"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/store"
	"github.com/tallerops/admin-console/shared/testdb"
)

func TestCreateSuperAdmin(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	cfg := &config.AppConfig{BootstrapAdminEmail: "founder@taller.com"}

	p, err := createSuperAdmin(ctx, db, cfg, " Root@Console.com ", "Root", "password1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Email != "root@console.com" || p.Role != models.RoleSuperAdmin || p.TenantID != nil {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if auth.CheckPassword(p.PasswordHash, "password1") != nil {
		t.Fatalf("expected stored password to verify")
	}

	consumed, err := store.New(db).BootstrapConsumed(ctx)
	if err != nil || !consumed {
		t.Fatalf("expected bootstrap closed, got %v %v", consumed, err)
	}

	var record models.AuditRecord
	if err := db.Where("action = ?", "users.create_superadmin").First(&record).Error; err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
	if record.ActorName != "system" || record.ResourceID != p.ID.String() {
		t.Fatalf("unexpected audit record: %+v", record)
	}

	if _, err := createSuperAdmin(ctx, db, cfg, "root@console.com", "Again", "password1"); err == nil {
		t.Fatalf("expected duplicate email rejected")
	}
	if _, err := createSuperAdmin(ctx, db, cfg, "other@console.com", "Short", "short"); err == nil || !strings.Contains(err.Error(), "at least") {
		t.Fatalf("expected short password rejected, got %v", err)
	}
}

func TestIssueToken(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	cfg := &config.AppConfig{JWTSecret: "cli-secret", JWTIssuer: "admin-console"}

	p, err := createSuperAdmin(ctx, db, cfg, "root@console.com", "Root", "password1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	token, err := issueToken(ctx, db, cfg, p.ID.String(), "30m")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	verifier, _ := auth.NewTokenVerifier(auth.VerifierConfig{HMACSecret: "cli-secret", Issuer: "admin-console"})
	claims, err := verifier.Verify(token)
	if err != nil || claims.Subject != p.ID.String() {
		t.Fatalf("expected verifiable token for the principal, got %v %v", claims, err)
	}

	if _, err := issueToken(ctx, db, cfg, uuid.NewString(), "30m"); err == nil {
		t.Fatalf("expected unknown principal rejected")
	}
	if _, err := issueToken(ctx, db, cfg, p.ID.String(), "-5m"); err == nil {
		t.Fatalf("expected negative ttl rejected")
	}
	if _, err := issueToken(ctx, db, cfg, "not-a-uuid", "1h"); err == nil {
		t.Fatalf("expected bad id rejected")
	}
}

func TestWriteRoleTable(t *testing.T) {
	var buf bytes.Buffer
	writeRoleTable(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(rbac.Roles()) {
		t.Fatalf("expected one line per role, got %d", len(lines))
	}
	total := len(rbac.AllCapabilities())
	if !strings.HasPrefix(lines[0], "superadmin") || !strings.Contains(lines[0], fmt.Sprintf("%d/%d", total, total)) {
		t.Fatalf("unexpected superadmin line: %q", lines[0])
	}
	viewer := lines[len(lines)-1]
	if !strings.HasPrefix(viewer, "viewer") || strings.Contains(viewer, "users:write") || !strings.Contains(viewer, "operations:read") {
		t.Fatalf("unexpected viewer line: %q", viewer)
	}
}
