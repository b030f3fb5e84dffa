package main

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tallerops/admin-console/shared/metrics"
	"github.com/tallerops/admin-console/shared/models"
)

// MessageWriter is the part of kafka.Writer the relay uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Relay publishes pending audit outbox rows to the event bus
type Relay struct {
	db            *gorm.DB
	writer        MessageWriter
	maxAttempts   int
	batchSize     int
	checkInterval time.Duration
	baseDelay     time.Duration
	now           func() time.Time
}

// NewRelay creates a relay with the default retry policy
func NewRelay(db *gorm.DB, writer MessageWriter) *Relay {
	return &Relay{
		db:            db,
		writer:        writer,
		maxAttempts:   8,
		batchSize:     100,
		checkInterval: 5 * time.Second,
		baseDelay:     30 * time.Second,
		now:           time.Now,
	}
}

// Run processes batches until ctx is cancelled
func (r *Relay) Run(ctx context.Context) {
	logrus.WithFields(logrus.Fields{
		"batch_size":     r.batchSize,
		"check_interval": r.checkInterval.String(),
	}).Info("Starting audit relay")

	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()

	for {
		if _, err := r.ProcessBatch(ctx); err != nil {
			logrus.WithError(err).Error("Error processing audit outbox")
		}
		select {
		case <-ctx.Done():
			logrus.Info("Audit relay stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch publishes up to batchSize due rows, oldest first, and returns
// how many were sent
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	var rows []models.AuditOutbox
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", models.OutboxPending, r.now().UTC()).
		Order("id ASC").
		Limit(r.batchSize).
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to fetch outbox rows: %w", err)
	}

	sent := 0
	for i := range rows {
		row := &rows[i]
		if err := r.publish(ctx, row); err != nil {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			if err := r.markRetry(ctx, row, err); err != nil {
				return sent, err
			}
			continue
		}
		if err := r.markSent(ctx, row); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (r *Relay) publish(ctx context.Context, row *models.AuditOutbox) error {
	key := "platform"
	if row.TenantID != nil {
		key = row.TenantID.String()
	}
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: row.Payload,
		Headers: []kafka.Header{
			{Key: "audit_id", Value: []byte(fmt.Sprintf("%d", row.AuditID))},
		},
		Time: row.CreatedAt,
	})
}

func (r *Relay) markSent(ctx context.Context, row *models.AuditOutbox) error {
	now := r.now().UTC()
	metrics.OutboxPublished.WithLabelValues("sent").Inc()
	return r.db.WithContext(ctx).Model(row).Updates(map[string]interface{}{
		"status":     models.OutboxSent,
		"sent_at":    now,
		"last_error": "",
	}).Error
}

// markRetry schedules the row again with exponential delay, or gives up
// after maxAttempts
func (r *Relay) markRetry(ctx context.Context, row *models.AuditOutbox, cause error) error {
	row.Attempts++
	updates := map[string]interface{}{
		"attempts":   row.Attempts,
		"last_error": cause.Error(),
	}

	log := logrus.WithFields(logrus.Fields{
		"outbox_id": row.ID,
		"audit_id":  row.AuditID,
		"attempts":  row.Attempts,
		"error":     cause,
	})
	if row.Attempts >= r.maxAttempts {
		updates["status"] = models.OutboxFailed
		metrics.OutboxPublished.WithLabelValues("failed").Inc()
		log.Error("Audit event abandoned after max attempts")
	} else {
		updates["next_attempt_at"] = r.now().UTC().Add(r.retryDelay(row.Attempts))
		metrics.OutboxPublished.WithLabelValues("retry").Inc()
		log.Warn("Audit event publish failed, will retry")
	}
	return r.db.WithContext(ctx).Model(row).Updates(updates).Error
}

// retryDelay is baseDelay doubled per attempt: 30s, 1m, 2m, ...
func (r *Relay) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return r.baseDelay * time.Duration(1<<(attempts-1))
}

// Stats counts outbox rows by status
func (r *Relay) Stats(ctx context.Context) (map[string]int64, error) {
	stats := map[string]int64{}
	for _, status := range []models.OutboxStatus{models.OutboxPending, models.OutboxSent, models.OutboxFailed} {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.AuditOutbox{}).Where("status = ?", status).Count(&count).Error; err != nil {
			return nil, err
		}
		stats[string(status)] = count
	}
	return stats, nil
}
