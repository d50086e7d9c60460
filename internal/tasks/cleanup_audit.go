package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"go.uber.org/zap"
)

// DefaultAuditRetentionDays applies when a task carries no retention.
const DefaultAuditRetentionDays = 30

// AuthEventCleaner deletes auth events older than a retention period.
type AuthEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// CleanupAuthEventsTask removes auth events older than RetentionDays.
type CleanupAuthEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for auth event cleanup tasks.
func (t CleanupAuthEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_auth_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuthEventsProcessor creates a processor function for CleanupAuthEventsTask.
func CleanupAuthEventsProcessor(cleaner AuthEventCleaner, log *zap.Logger) backlite.QueueProcessor[CleanupAuthEventsTask] {
	return func(ctx context.Context, task CleanupAuthEventsTask) error {
		if cleaner == nil {
			return errors.New("auth event cleaner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = DefaultAuditRetentionDays
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted, err := cleaner.DeleteOldEvents(retention)
		if err != nil {
			return fmt.Errorf("cleanup auth events: %w", err)
		}

		log.Info("cleaned up auth events",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", retentionDays),
		)
		return nil
	}
}

// NewCleanupAuthEventsQueue creates a backlite queue for auth event cleanup tasks.
func NewCleanupAuthEventsQueue(cleaner AuthEventCleaner, log *zap.Logger) backlite.Queue {
	return backlite.NewQueue(CleanupAuthEventsProcessor(cleaner, log.Named("tasks")))
}
