package tenancy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/testdb"
)

type stubTenantStore struct {
	tenants map[uuid.UUID]*models.Tenant
	calls   int
}

func (s *stubTenantStore) FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.calls++
	t, ok := s.tenants[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.TenantStatus
		ok       bool
	}{
		{models.TenantStatusTrial, models.TenantStatusActive, true},
		{models.TenantStatusTrial, models.TenantStatusCancelled, true},
		{models.TenantStatusTrial, models.TenantStatusSuspended, false},
		{models.TenantStatusActive, models.TenantStatusSuspended, true},
		{models.TenantStatusActive, models.TenantStatusCancelled, true},
		{models.TenantStatusActive, models.TenantStatusTrial, false},
		{models.TenantStatusSuspended, models.TenantStatusActive, true},
		{models.TenantStatusSuspended, models.TenantStatusCancelled, true},
		{models.TenantStatusCancelled, models.TenantStatusActive, false},
		{models.TenantStatusCancelled, models.TenantStatusTrial, false},
		{models.TenantStatusActive, models.TenantStatusActive, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestTransition_SuspendNeedsReason(t *testing.T) {
	tenant := &models.Tenant{Status: models.TenantStatusActive}
	if err := Transition(tenant, models.TenantStatusSuspended, "  "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	if tenant.Status != models.TenantStatusActive {
		t.Fatalf("expected status unchanged, got %s", tenant.Status)
	}

	if err := Transition(tenant, models.TenantStatusSuspended, "falta de pago"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if tenant.SuspendedReason != "falta de pago" {
		t.Fatalf("expected reason stored, got %q", tenant.SuspendedReason)
	}

	if err := Transition(tenant, models.TenantStatusActive, ""); err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if tenant.SuspendedReason != "" {
		t.Fatalf("expected reason cleared on reactivation")
	}
}

func TestTransition_CancelledIsTerminal(t *testing.T) {
	tenant := &models.Tenant{Status: models.TenantStatusCancelled}
	for _, to := range []models.TenantStatus{models.TenantStatusTrial, models.TenantStatusActive, models.TenantStatusSuspended} {
		if err := Transition(tenant, to, "x"); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled -> %s: expected ErrInvalidTransition, got %v", to, err)
		}
	}
}

func TestTransition_ActivationEndsTrial(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tenant := NewTenant("Taller Central", "taller-central", models.PlanFree, now, 0)
	if tenant.TrialEndsAt == nil || !tenant.TrialEndsAt.Equal(now.Add(DefaultTrialPeriod)) {
		t.Fatalf("expected trial to end 14 days after creation, got %v", tenant.TrialEndsAt)
	}
	if err := Transition(tenant, models.TenantStatusActive, ""); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if tenant.TrialEndsAt != nil {
		t.Fatalf("expected trial end cleared")
	}
}

func TestNewTenant_Defaults(t *testing.T) {
	tenant := NewTenant("Taller", "taller", "gold", time.Now(), 7*24*time.Hour)
	if tenant.Status != models.TenantStatusTrial {
		t.Fatalf("expected trial, got %s", tenant.Status)
	}
	if tenant.Plan != models.PlanFree {
		t.Fatalf("expected unknown plan to fall back to free, got %s", tenant.Plan)
	}
	if tenant.MaxUsers != models.DefaultQuota(models.PlanFree).MaxUsers {
		t.Fatalf("expected free quota, got %d", tenant.MaxUsers)
	}
}

func TestLifecycleGate_Suspended(t *testing.T) {
	t1 := uuid.New()
	store := &stubTenantStore{tenants: map[uuid.UUID]*models.Tenant{
		t1: {ID: t1, Name: "Taller Central", Status: models.TenantStatusSuspended, SuspendedReason: "falta de pago"},
	}}
	gate := NewLifecycleGate(store)
	p := &models.Principal{Role: models.RoleOperator, TenantID: &t1}

	first := gate.Check(context.Background(), p)
	var suspended *TenantSuspendedError
	if !errors.As(first, &suspended) {
		t.Fatalf("expected TenantSuspendedError, got %v", first)
	}
	if suspended.TenantID != t1 || suspended.TenantName != "Taller Central" {
		t.Fatalf("unexpected notice payload: %+v", suspended)
	}

	second := gate.Check(context.Background(), p)
	if second == nil || second.Error() != first.Error() {
		t.Fatalf("expected identical result on repeat, got %v then %v", first, second)
	}
}

func TestLifecycleGate_Outcomes(t *testing.T) {
	active, cancelled, missing := uuid.New(), uuid.New(), uuid.New()
	store := &stubTenantStore{tenants: map[uuid.UUID]*models.Tenant{
		active:    {ID: active, Status: models.TenantStatusActive},
		cancelled: {ID: cancelled, Status: models.TenantStatusCancelled},
	}}
	gate := NewLifecycleGate(store)
	ctx := context.Background()

	if err := gate.Check(ctx, &models.Principal{Role: models.RoleAdmin, TenantID: &active}); err != nil {
		t.Fatalf("active: expected allow, got %v", err)
	}

	var cancelledErr *TenantCancelledError
	if err := gate.Check(ctx, &models.Principal{Role: models.RoleAdmin, TenantID: &cancelled}); !errors.As(err, &cancelledErr) {
		t.Fatalf("cancelled: expected TenantCancelledError, got %v", err)
	}

	if err := gate.Check(ctx, &models.Principal{Role: models.RoleAdmin, TenantID: &missing}); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("missing: expected ErrTenantNotFound, got %v", err)
	}

	before := store.calls
	if err := gate.Check(ctx, &models.Principal{Role: models.RoleSuperAdmin, TenantID: &cancelled}); err != nil {
		t.Fatalf("superadmin: expected bypass, got %v", err)
	}
	if err := gate.Check(ctx, &models.Principal{Role: models.RoleViewer}); err != nil {
		t.Fatalf("untenanted: expected bypass, got %v", err)
	}
	if store.calls != before {
		t.Fatalf("expected bypassed principals not to hit the store")
	}
}

func TestSaveTransition_WritesWhenStatusUnchanged(t *testing.T) {
	db := testdb.Open(t)
	tenant := &models.Tenant{Name: "Taller Uno", Slug: "taller-uno", Status: models.TenantStatusSuspended, SuspendedReason: "deuda"}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := SaveTransition(db, tenant, models.TenantStatusActive, ""); err != nil {
		t.Fatalf("expected transition, got %v", err)
	}
	var stored models.Tenant
	db.First(&stored, "id = ?", tenant.ID)
	if stored.Status != models.TenantStatusActive || stored.SuspendedReason != "" {
		t.Fatalf("expected active without reason, got %s %q", stored.Status, stored.SuspendedReason)
	}
}

func TestSaveTransition_StaleReadDoesNotReviveCancelled(t *testing.T) {
	db := testdb.Open(t)
	tenant := &models.Tenant{Name: "Taller Uno", Slug: "taller-uno", Status: models.TenantStatusSuspended, SuspendedReason: "deuda"}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	stale := *tenant

	// cancelled by someone else after stale was read
	if err := db.Model(&models.Tenant{}).Where("id = ?", tenant.ID).Update("status", models.TenantStatusCancelled).Error; err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err := SaveTransition(db, &stale, models.TenantStatusActive, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if stale.Status != models.TenantStatusSuspended || stale.SuspendedReason != "deuda" {
		t.Fatalf("expected caller copy restored, got %s %q", stale.Status, stale.SuspendedReason)
	}
	var stored models.Tenant
	db.First(&stored, "id = ?", tenant.ID)
	if stored.Status != models.TenantStatusCancelled {
		t.Fatalf("expected tenant to stay cancelled, got %s", stored.Status)
	}
}

func TestSaveTransition_RejectsBeforeWriting(t *testing.T) {
	db := testdb.Open(t)
	tenant := &models.Tenant{Name: "Taller Uno", Slug: "taller-uno", Status: models.TenantStatusActive}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SaveTransition(db, tenant, models.TenantStatusSuspended, "  "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
	var stored models.Tenant
	db.First(&stored, "id = ?", tenant.ID)
	if stored.Status != models.TenantStatusActive {
		t.Fatalf("expected no write, got %s", stored.Status)
	}
}
