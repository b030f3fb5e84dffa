package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/rbac"
	"github.com/tallerops/admin-console/shared/testdb"
)

func newTestRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t)
	r := NewRecorder(NewGormStore(db))
	r.now = func() time.Time { return time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC) }
	return r, db
}

func principal(role models.UserRole, tenant *uuid.UUID) *models.Principal {
	return &models.Principal{ID: uuid.New(), Name: "Ana", Email: "ana@taller.com", Role: role, TenantID: tenant}
}

func TestRecord_OrderedByInsertion(t *testing.T) {
	r, _ := newTestRecorder(t)
	tenant := uuid.New()
	actor := principal(models.RoleAdmin, &tenant)
	ctx := context.Background()

	r.Record(ctx, actor, Entry{Action: "users.update", ResourceType: "user", ResourceID: "w1"})
	r.Record(ctx, actor, Entry{Action: "users.update", ResourceType: "user", ResourceID: "w2"})

	records, err := r.Query(ctx, Filter{}, actor)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ResourceID != "w1" || records[1].ResourceID != "w2" {
		t.Fatalf("expected w1 before w2, got %s then %s", records[0].ResourceID, records[1].ResourceID)
	}
}

func TestRecord_SnapshotsByValue(t *testing.T) {
	r, _ := newTestRecorder(t)
	tenant := uuid.New()
	actor := principal(models.RoleAdmin, &tenant)

	state := map[string]interface{}{"name": "Taller Norte"}
	r.Record(context.Background(), actor, Entry{Action: "tenants.update", ResourceType: "tenant", ResourceID: tenant.String(), After: state})
	state["name"] = "mutated"

	records, err := r.Query(context.Background(), Filter{}, actor)
	if err != nil || len(records) != 1 {
		t.Fatalf("expected one record, got %d (%v)", len(records), err)
	}
	var after map[string]string
	if err := json.Unmarshal(records[0].After, &after); err != nil {
		t.Fatalf("decode after: %v", err)
	}
	if after["name"] != "Taller Norte" {
		t.Fatalf("expected snapshot taken at record time, got %q", after["name"])
	}
	if records[0].Before != nil {
		t.Fatalf("expected empty before, got %s", records[0].Before)
	}
}

func TestRecord_SystemActorAndOutbox(t *testing.T) {
	r, db := newTestRecorder(t)
	tenant := uuid.New()

	r.Record(context.Background(), nil, Entry{Action: "payments.status_change", ResourceType: "payment", ResourceID: "p1", TenantID: &tenant})

	var record models.AuditRecord
	if err := db.First(&record).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.ActorID != nil || record.ActorName != SystemActorName || record.ActorEmail != SystemActorEmail {
		t.Fatalf("expected system actor, got %+v", record)
	}
	if record.TenantID == nil || *record.TenantID != tenant {
		t.Fatalf("expected tenant %s, got %v", tenant, record.TenantID)
	}

	var outbox models.AuditOutbox
	if err := db.First(&outbox).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if outbox.AuditID != record.ID || outbox.Status != models.OutboxPending {
		t.Fatalf("unexpected outbox row: %+v", outbox)
	}
}

func TestRecordTx_RollsBackWithMutation(t *testing.T) {
	r, db := newTestRecorder(t)
	actor := principal(models.RoleSuperAdmin, nil)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := r.RecordTx(tx, actor, Entry{Action: "tenants.create", ResourceType: "tenant", ResourceID: "t1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected rollback error, got %v", err)
	}

	var count int64
	db.Model(&models.AuditRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no audit rows after rollback, got %d", count)
	}
	db.Model(&models.AuditOutbox{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no outbox rows after rollback, got %d", count)
	}
}

func TestQuery_TenantIsolation(t *testing.T) {
	r, _ := newTestRecorder(t)
	t1, t2 := uuid.New(), uuid.New()
	ctx := context.Background()

	r.Record(ctx, principal(models.RoleAdmin, &t1), Entry{Action: "users.invite", ResourceType: "user", ResourceID: "a"})
	r.Record(ctx, principal(models.RoleAdmin, &t2), Entry{Action: "users.invite", ResourceType: "user", ResourceID: "b"})
	r.Record(ctx, nil, Entry{Action: "users.create_superadmin", ResourceType: "user", ResourceID: "c"})

	viewer := principal(models.RoleViewer, &t1)
	records, err := r.Query(ctx, Filter{}, viewer)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	seen := map[string]bool{}
	for _, rec := range records {
		seen[rec.ResourceID] = true
	}
	if !seen["a"] || !seen["c"] || seen["b"] {
		t.Fatalf("expected own tenant plus untenanted, got %v", seen)
	}

	if _, err := r.Query(ctx, Filter{TenantID: &t2}, viewer); !errors.Is(err, rbac.ErrForbidden) {
		t.Fatalf("expected cross-tenant query forbidden, got %v", err)
	}

	super := principal(models.RoleSuperAdmin, nil)
	records, err = r.Query(ctx, Filter{TenantID: &t2}, super)
	if err != nil {
		t.Fatalf("superadmin query: %v", err)
	}
	if len(records) != 1 || records[0].ResourceID != "b" {
		t.Fatalf("expected only tenant t2 records for superadmin filter, got %d", len(records))
	}

	records, _ = r.Query(ctx, Filter{}, super)
	if len(records) != 3 {
		t.Fatalf("expected superadmin to see all 3 records, got %d", len(records))
	}
}

func TestQuery_Filters(t *testing.T) {
	r, _ := newTestRecorder(t)
	super := principal(models.RoleSuperAdmin, nil)
	other := principal(models.RoleSuperAdmin, nil)
	ctx := context.Background()

	r.Record(ctx, super, Entry{Action: "tenants.create", ResourceType: "tenant", ResourceID: "1"})
	r.Record(ctx, super, Entry{Action: "tenants.suspend", ResourceType: "tenant", ResourceID: "1"})
	r.Record(ctx, other, Entry{Action: "users.invite", ResourceType: "user", ResourceID: "2"})

	cases := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"action", Filter{Action: "tenants.suspend"}, 1},
		{"resource type", Filter{ResourceType: "tenant"}, 2},
		{"actor", Filter{ActorID: &other.ID}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 2}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records, err := r.Query(ctx, tc.filter, super)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(records) != tc.want {
				t.Fatalf("expected %d records, got %d", tc.want, len(records))
			}
		})
	}
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, record *models.AuditRecord) error {
	return errors.New("disk full")
}

func (failingStore) Query(ctx context.Context, filter Filter) ([]models.AuditRecord, error) {
	return nil, nil
}

func TestRecord_FailureIsSwallowed(t *testing.T) {
	r := NewRecorder(failingStore{})
	r.Record(context.Background(), nil, Entry{Action: "auth.login", ResourceType: "user"})
}
