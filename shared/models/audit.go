package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditRecord is an immutable entry describing who did what to which
// resource. Actor and tenant are stored by value so that later changes to
// (or deletion of) the live rows do not alter history.
type AuditRecord struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	ActorID      *uuid.UUID     `json:"actor_id,omitempty" gorm:"type:uuid;index"`
	ActorName    string         `json:"actor_name"`
	ActorEmail   string         `json:"actor_email"`
	TenantID     *uuid.UUID     `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Action       string         `json:"action" gorm:"type:varchar(100);not null;index"`
	ResourceType string         `json:"resource_type" gorm:"type:varchar(50);not null"`
	ResourceID   string         `json:"resource_id" gorm:"type:varchar(100)"`
	Before       datatypes.JSON `json:"before,omitempty"`
	After        datatypes.JSON `json:"after,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty" gorm:"type:varchar(64)"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null;index"`
}

func (AuditRecord) TableName() string {
	return "audit_logs"
}

// OutboxStatus is the delivery state of an audit outbox row
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// AuditOutbox holds audit records waiting to be published to the event bus.
// Rows are written in the same transaction as the audit record.
type AuditOutbox struct {
	ID            int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	AuditID       int64          `json:"audit_id" gorm:"not null;index"`
	TenantID      *uuid.UUID     `json:"tenant_id,omitempty" gorm:"type:uuid"`
	Payload       datatypes.JSON `json:"payload" gorm:"not null"`
	Status        OutboxStatus   `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts      int            `json:"attempts" gorm:"not null;default:0"`
	LastError     string         `json:"last_error,omitempty"`
	NextAttemptAt time.Time      `json:"next_attempt_at" gorm:"not null;index"`
	SentAt        *time.Time     `json:"sent_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (AuditOutbox) TableName() string {
	return "audit_outbox"
}
