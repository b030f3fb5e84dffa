// Package audit appends immutable records of every mutating action and
// serves them back, filtered and tenant-isolated.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/metrics"
	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/tenancy"
)

// System actor used for events with no authenticated principal, such as
// processor webhooks.
const (
	SystemActorName  = "system"
	SystemActorEmail = "system@local"
)

// Entry describes one action to record
type Entry struct {
	Action       string
	ResourceType string
	ResourceID   string
	// TenantID overrides the actor's tenant, e.g. a superadmin acting on a tenant
	TenantID  *uuid.UUID
	Before    interface{}
	After     interface{}
	IPAddress string
	UserAgent string
}

// Store persists and reads audit records
type Store interface {
	Append(ctx context.Context, record *models.AuditRecord) error
	Query(ctx context.Context, filter Filter) ([]models.AuditRecord, error)
}

// Recorder builds audit records from entries
type Recorder struct {
	store Store
	now   func() time.Time
	log   *logrus.Entry
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		now:   time.Now,
		log:   logrus.WithField("component", "audit"),
	}
}

// Record appends an entry outside any transaction. Failures are logged and
// swallowed: the action being described already happened.
func (r *Recorder) Record(ctx context.Context, actor *models.Principal, e Entry) {
	record, err := r.build(actor, e)
	if err == nil {
		err = r.store.Append(ctx, record)
	}
	if err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		r.log.WithFields(logrus.Fields{
			"action":        e.Action,
			"resource_type": e.ResourceType,
			"resource_id":   e.ResourceID,
			"error":         err,
		}).Error("Failed to write audit record")
		return
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
}

// RecordTx appends an entry and its outbox row inside tx, so the mutation
// that tx carries and its audit trail commit together.
func (r *Recorder) RecordTx(tx *gorm.DB, actor *models.Principal, e Entry) error {
	record, err := r.build(actor, e)
	if err != nil {
		return err
	}
	if err := appendWithOutbox(tx, record); err != nil {
		metrics.AuditWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("append audit record: %w", err)
	}
	metrics.AuditWrites.WithLabelValues("ok").Inc()
	return nil
}

// Query returns records matching filter that requester may see, oldest first.
// Non-global principals see their own tenant plus untenanted records.
func (r *Recorder) Query(ctx context.Context, filter Filter, requester *models.Principal) ([]models.AuditRecord, error) {
	scoped, err := tenancy.EnforceTenantScope(requester, filter.TenantID)
	if err != nil {
		return nil, err
	}
	filter.TenantID = scoped
	filter.IncludeUntenanted = !requester.Role.IsGlobal()
	return r.store.Query(ctx, filter)
}

func (r *Recorder) build(actor *models.Principal, e Entry) (*models.AuditRecord, error) {
	before, err := snapshot(e.Before)
	if err != nil {
		return nil, fmt.Errorf("snapshot before: %w", err)
	}
	after, err := snapshot(e.After)
	if err != nil {
		return nil, fmt.Errorf("snapshot after: %w", err)
	}

	record := &models.AuditRecord{
		ActorName:    SystemActorName,
		ActorEmail:   SystemActorEmail,
		TenantID:     copyID(e.TenantID),
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Before:       before,
		After:        after,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		CreatedAt:    r.now().UTC(),
	}
	if actor != nil {
		id := actor.ID
		record.ActorID = &id
		record.ActorName = actor.Name
		record.ActorEmail = actor.Email
		if record.TenantID == nil {
			record.TenantID = copyID(actor.TenantID)
		}
	}
	return record, nil
}

// snapshot serializes v now, so later mutation of v cannot reach the record
func snapshot(v interface{}) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return datatypes.JSON(append([]byte(nil), raw...)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
