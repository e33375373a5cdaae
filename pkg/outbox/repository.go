package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/models"
)

const maxLastErrorLen = 1024

var errTxRequired = errors.New("outbox repository call requires a transaction")

// Repository reads and writes outbox_events. Every write runs on a
// caller-supplied transaction.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Create(&event).Error
}

// FetchUnpublishedForPublish claims the oldest pending rows that still have
// attempts left. On Postgres the rows stay locked until tx ends.
func (r *Repository) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, errTxRequired
	}
	query := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		query = query.Where("attempt_count < ?", maxAttempts)
	}

	var rows []models.OutboxEvent
	err := dbpkg.ForUpdateSkipLocked(query).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": r.now().UTC()})
}

// MarkFailedTx records a retryable failure and burns one attempt.
func (r *Repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    truncateError(err),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// MarkTerminalTx parks the row at terminalAttempts so the poller never picks
// it up again.
func (r *Repository) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    truncateError(err),
		"attempt_count": terminalAttempts,
	})
}

// DeletePublishedBefore drops published rows older than cutoff and reports
// how many were removed. A nil tx runs outside any transaction.
func (r *Repository) DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("published_at IS NOT NULL AND published_at < ?", cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return errTxRequired
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLastErrorLen {
		return msg[:maxLastErrorLen]
	}
	return msg
}
