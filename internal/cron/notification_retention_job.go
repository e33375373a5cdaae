package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// NotificationRetentionJobName labels the job in logs, metrics, and the lock.
const NotificationRetentionJobName = "notification-retention"

const (
	defaultPublishedRetention  = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPruner interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type NotificationRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Outbox      publishedPruner
	DeadLetters deadLetterPruner
	// Published and DeadLetter are the ages past which delivered events and
	// dead letters are dropped. Zero selects 30 and 90 days.
	Published  time.Duration
	DeadLetter time.Duration
	Clock      dates.Clock
}

// NewNotificationRetentionJob prunes customer notifications that no longer
// need to be kept: events Pub/Sub acknowledged and dead letters nobody
// requeued. Pending events are never touched.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	case params.DeadLetters == nil:
		return nil, fmt.Errorf("dead letter repository required")
	}
	job := &notificationRetentionJob{
		logg:       params.Logger,
		db:         params.DB,
		outbox:     params.Outbox,
		dead:       params.DeadLetters,
		published:  params.Published,
		deadLetter: params.DeadLetter,
		clock:      params.Clock,
	}
	if job.published <= 0 {
		job.published = defaultPublishedRetention
	}
	if job.deadLetter <= 0 {
		job.deadLetter = defaultDeadLetterRetention
	}
	if job.clock == nil {
		job.clock = dates.SystemClock
	}
	return job, nil
}

type notificationRetentionJob struct {
	logg       *logger.Logger
	db         txRunner
	outbox     publishedPruner
	dead       deadLetterPruner
	published  time.Duration
	deadLetter time.Duration
	clock      dates.Clock
}

func (j *notificationRetentionJob) Name() string { return NotificationRetentionJobName }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	now := j.clock().UTC()
	publishedCutoff := now.Add(-j.published)
	deadLetterCutoff := now.Add(-j.deadLetter)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.outbox.DeletePublishedBefore(ctx, tx, publishedCutoff); err != nil {
			return fmt.Errorf("published events: %w", err)
		}
		if letters, err = j.dead.DeleteFailedBefore(ctx, tx, deadLetterCutoff); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("notification retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"published_cutoff":     publishedCutoff,
		"dead_letter_cutoff":   deadLetterCutoff,
		"events_deleted":       events,
		"dead_letters_deleted": letters,
	}), "notification retention pass complete")
	return nil
}
