package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/tenancy"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Filter narrows an audit query
type Filter struct {
	TenantID     *uuid.UUID
	ActorID      *uuid.UUID
	Action       string
	ResourceType string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int

	// IncludeUntenanted adds system/untenanted records to a tenant filter
	IncludeUntenanted bool
}

// GormStore keeps audit records in the audit_logs table
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Append writes record and its outbox row in one transaction
func (s *GormStore) Append(ctx context.Context, record *models.AuditRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendWithOutbox(tx, record)
	})
}

// Query returns matching records ordered by creation time, then insertion order
func (s *GormStore) Query(ctx context.Context, f Filter) ([]models.AuditRecord, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditRecord{})
	if f.IncludeUntenanted {
		q = q.Scopes(tenancy.ScopeWithShared(f.TenantID))
	} else {
		q = q.Scopes(tenancy.Scope(f.TenantID))
	}
	if f.ActorID != nil {
		q = q.Where("actor_id = ?", *f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.ResourceType != "" {
		q = q.Where("resource_type = ?", f.ResourceType)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	var records []models.AuditRecord
	err := q.Order("created_at ASC").Order("id ASC").
		Limit(limit).Offset(f.Offset).
		Find(&records).Error
	return records, err
}

func appendWithOutbox(tx *gorm.DB, record *models.AuditRecord) error {
	if err := tx.Create(record).Error; err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	outbox := models.AuditOutbox{
		AuditID:       record.ID,
		TenantID:      record.TenantID,
		Payload:       datatypes.JSON(payload),
		Status:        models.OutboxPending,
		NextAttemptAt: record.CreatedAt,
	}
	return tx.Create(&outbox).Error
}
