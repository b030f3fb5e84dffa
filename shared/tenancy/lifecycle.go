package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/models"
)

var (
	// ErrTenantNotFound is returned when the tenant row does not exist
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrInvalidTransition is returned for a status change the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid tenant status transition")
	// ErrReasonRequired is returned when suspending without a reason
	ErrReasonRequired = errors.New("suspension reason required")
)

// DefaultTrialPeriod is how long a new tenant stays in trial
const DefaultTrialPeriod = 14 * 24 * time.Hour

// TenantSuspendedError carries what a client needs to render a suspension notice
type TenantSuspendedError struct {
	TenantID   uuid.UUID
	TenantName string
	Reason     string
}

func (e *TenantSuspendedError) Error() string {
	return fmt.Sprintf("tenant %s (%s) is suspended", e.TenantID, e.TenantName)
}

// Message is the user-facing notice text
func (e *TenantSuspendedError) Message() string {
	msg := fmt.Sprintf("La cuenta de %s está suspendida. Contacte al administrador.", e.TenantName)
	if e.Reason != "" {
		msg += " Motivo: " + e.Reason
	}
	return msg
}

// TenantCancelledError is returned for traffic of a cancelled tenant
type TenantCancelledError struct {
	TenantID uuid.UUID
}

func (e *TenantCancelledError) Error() string {
	return fmt.Sprintf("tenant %s is cancelled", e.TenantID)
}

var transitions = map[models.TenantStatus][]models.TenantStatus{
	models.TenantStatusTrial:     {models.TenantStatusActive, models.TenantStatusCancelled},
	models.TenantStatusActive:    {models.TenantStatusSuspended, models.TenantStatusCancelled},
	models.TenantStatusSuspended: {models.TenantStatusActive, models.TenantStatusCancelled},
}

// CanTransition reports whether the lifecycle allows from → to
func CanTransition(from, to models.TenantStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves t to status to. Suspension needs a reason, which is
// cleared again on reactivation.
func Transition(t *models.Tenant, to models.TenantStatus, reason string) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	reason = strings.TrimSpace(reason)
	if to == models.TenantStatusSuspended && reason == "" {
		return ErrReasonRequired
	}
	t.Status = to
	switch to {
	case models.TenantStatusSuspended:
		t.SuspendedReason = reason
	case models.TenantStatusActive:
		t.SuspendedReason = ""
		t.TrialEndsAt = nil
	}
	return nil
}

// SaveTransition applies Transition to t and writes it through tx, but only
// while the stored status is still the one t was read with. A row changed
// underneath gets ErrInvalidTransition and t is left as it was.
func SaveTransition(tx *gorm.DB, t *models.Tenant, to models.TenantStatus, reason string) error {
	prev := *t
	if err := Transition(t, to, reason); err != nil {
		return err
	}
	res := tx.Model(&models.Tenant{}).
		Where("id = ? AND status = ?", t.ID, prev.Status).
		Updates(map[string]interface{}{
			"status":           t.Status,
			"suspended_reason": t.SuspendedReason,
			"trial_ends_at":    t.TrialEndsAt,
		})
	if res.Error != nil {
		*t = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		*t = prev
		return fmt.Errorf("%w: status of %s is no longer %s", ErrInvalidTransition, t.ID, prev.Status)
	}
	return nil
}

// NewTenant builds a tenant in trial with plan defaults applied
func NewTenant(name, slug string, plan models.PlanTier, now time.Time, trial time.Duration) *models.Tenant {
	if !plan.Valid() {
		plan = models.PlanFree
	}
	if trial <= 0 {
		trial = DefaultTrialPeriod
	}
	ends := now.Add(trial)
	quota := models.DefaultQuota(plan)
	return &models.Tenant{
		ID:           uuid.New(),
		Name:         name,
		Slug:         slug,
		Plan:         plan,
		Status:       models.TenantStatusTrial,
		TrialEndsAt:  &ends,
		MaxUsers:     quota.MaxUsers,
		MaxLocations: quota.MaxLocations,
		CreatedAt:    now,
	}
}

// TenantStore is the lookup the lifecycle gate needs
type TenantStore interface {
	FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// LifecycleGate rejects tenant-scoped traffic of suspended or cancelled tenants
type LifecycleGate struct {
	tenants TenantStore
}

func NewLifecycleGate(tenants TenantStore) *LifecycleGate {
	return &LifecycleGate{tenants: tenants}
}

// Check returns nil when p may proceed. Superadmins and principals without a
// tenant are not subject to the gate.
func (g *LifecycleGate) Check(ctx context.Context, p *models.Principal) error {
	if p == nil || p.Role.IsGlobal() || p.TenantID == nil {
		return nil
	}
	tenant, err := g.tenants.FindTenant(ctx, *p.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		return ErrTenantNotFound
	}
	switch tenant.Status {
	case models.TenantStatusSuspended:
		return &TenantSuspendedError{TenantID: tenant.ID, TenantName: tenant.Name, Reason: tenant.SuspendedReason}
	case models.TenantStatusCancelled:
		return &TenantCancelledError{TenantID: tenant.ID}
	}
	return nil
}
