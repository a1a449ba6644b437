package cron

import (
	"context"
	"fmt"

	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

const notificationRetentionDays = 30

type notificationsCleaner interface {
	CleanupOld(ctx context.Context, daysOld int) (int64, error)
}

type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	Notifications notificationsCleaner
	RetentionDays int
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		svc:       params.Notifications,
		retention: retention,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	svc       notificationsCleaner
	retention int
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	deleted, err := j.svc.CleanupOld(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
