package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

type fakePruner struct {
	pruned     int64
	err        error
	lastMaxAge time.Duration
}

func (f *fakePruner) PruneStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	f.lastMaxAge = maxAge
	if f.err != nil {
		return 0, f.err
	}
	return f.pruned, nil
}

func TestPushPruneJobUsesConfiguredMaxAge(t *testing.T) {
	pruner := &fakePruner{pruned: 3}
	job, err := NewPushPruneJob(PushPruneJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Push:   pruner,
		MaxAge: 30 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPushPruneJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.lastMaxAge != 30*24*time.Hour {
		t.Fatalf("expected 30d max age, got %s", pruner.lastMaxAge)
	}
}

func TestPushPruneJobDefaultsMaxAge(t *testing.T) {
	pruner := &fakePruner{}
	job, err := NewPushPruneJob(PushPruneJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Push:   pruner,
	})
	if err != nil {
		t.Fatalf("NewPushPruneJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pruner.lastMaxAge != defaultSubscriptionMaxAge {
		t.Fatalf("expected default max age %s, got %s", defaultSubscriptionMaxAge, pruner.lastMaxAge)
	}
}

func TestPushPruneJobPropagatesErrors(t *testing.T) {
	pruner := &fakePruner{err: errors.New("boom")}
	job, err := NewPushPruneJob(PushPruneJobParams{
		Logger: logger.New(logger.Options{ServiceName: "test"}),
		Push:   pruner,
	})
	if err != nil {
		t.Fatalf("NewPushPruneJob: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
