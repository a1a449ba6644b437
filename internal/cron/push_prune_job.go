package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

const defaultSubscriptionMaxAge = 90 * 24 * time.Hour

type pushPruner interface {
	PruneStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

type PushPruneJobParams struct {
	Logger *logger.Logger
	Push   pushPruner
	MaxAge time.Duration
}

// NewPushPruneJob removes push subscriptions that have not been refreshed
// within MaxAge. Browsers rotate endpoints; entries past this window are
// almost certainly dead and only generate failed dispatches.
func NewPushPruneJob(params PushPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Push == nil {
		return nil, fmt.Errorf("push service required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultSubscriptionMaxAge
	}
	return &pushPruneJob{
		logg:   params.Logger,
		svc:    params.Push,
		maxAge: maxAge,
	}, nil
}

type pushPruneJob struct {
	logg   *logger.Logger
	svc    pushPruner
	maxAge time.Duration
}

func (j *pushPruneJob) Name() string { return "push-subscription-prune" }

func (j *pushPruneJob) Run(ctx context.Context) error {
	pruned, err := j.svc.PruneStale(ctx, j.maxAge)
	if err != nil {
		return fmt.Errorf("push subscription prune: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"max_age_hours": j.maxAge.Hours(),
		"rows_deleted":  pruned,
	})
	j.logg.Info(logCtx, "push subscription prune complete")
	return nil
}
