package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

type fakeCleaner struct {
	deletedRows int64
	err         error
	lastDays    int
	called      int
}

func (f *fakeCleaner) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	f.called++
	f.lastDays = daysOld
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func TestNotificationCleanupJobUsesConfiguredRetention(t *testing.T) {
	cleaner := &fakeCleaner{deletedRows: 42}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: cleaner,
		RetentionDays: 7,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cleaner.called != 1 {
		t.Fatalf("expected service called once, got %d", cleaner.called)
	}
	if cleaner.lastDays != 7 {
		t.Fatalf("expected retention 7, got %d", cleaner.lastDays)
	}
}

func TestNotificationCleanupJobDefaultsRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: cleaner,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cleaner.lastDays != notificationRetentionDays {
		t.Fatalf("expected default retention %d, got %d", notificationRetentionDays, cleaner.lastDays)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("boom")}
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: cleaner,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
