package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
)

const (
	maxDLQErrorLen   = 1024
	defaultDLQListed = 50
)

// DLQRepository stores notifications the relay gave up on and lets an
// operator put them back in line.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx records a dead letter in the relay's transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if !entry.ErrorReason.IsValid() {
		return fmt.Errorf("unknown dlq reason %q", entry.ErrorReason)
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns nil without error when nothing was dead-lettered for
// the outbox row.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns the newest dead letters, optionally only those with reason.
func (r *DLQRepository) List(ctx context.Context, reason *enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListed
	}
	query := r.db.WithContext(ctx).Order("failed_at DESC").Limit(limit)
	if reason != nil {
		query = query.Where("error_reason = ?", *reason)
	}
	var rows []models.OutboxDLQ
	return rows, query.Find(&rows).Error
}

// DeleteFailedBefore drops dead letters that failed before cutoff.
func (r *DLQRepository) DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}

// Requeue resets the original outbox row to a fresh pending state and drops
// its dead letter, so the relay picks it up on the next poll. It reports
// false when eventID has no dead letter.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) (bool, error) {
	requeued := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		update := tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return fmt.Errorf("outbox event %s is gone or already published", eventID)
		}
		requeued = true
		return nil
	})
	return requeued, err
}
