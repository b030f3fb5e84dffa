package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkOrder is a workshop job tracked for a tenant
type WorkOrder struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Number       string          `json:"number" gorm:"type:varchar(40);not null"`
	CustomerName string          `json:"customer_name"`
	Vehicle      string          `json:"vehicle"`
	Description  string          `json:"description"`
	Status       WorkOrderStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	Total        float64         `json:"total"`
	OpenedAt     time.Time       `json:"opened_at" gorm:"not null"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `json:"-" gorm:"index"`
}

// TableName returns the table name for the WorkOrder model
func (WorkOrder) TableName() string {
	return "work_orders"
}

func (w *WorkOrder) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// WorkOrderStatus represents the status of a work order
type WorkOrderStatus string

const (
	WorkOrderOpen       WorkOrderStatus = "open"
	WorkOrderInProgress WorkOrderStatus = "in_progress"
	WorkOrderCompleted  WorkOrderStatus = "completed"
	WorkOrderCancelled  WorkOrderStatus = "cancelled"
)

// AllModels lists every persisted model, in migration order
func AllModels() []interface{} {
	return []interface{}{
		&Tenant{},
		&Principal{},
		&Payment{},
		&MercadoPagoConfig{},
		&WorkOrder{},
		&AuditRecord{},
		&AuditOutbox{},
		&BootstrapState{},
	}
}
