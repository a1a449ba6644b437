package push

import (
	"context"
	"time"

	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
)

// Pruner removes stale subscriptions without pulling in the delivery stack.
// The cron worker uses it so it can run without web push keys configured.
type Pruner struct {
	repo Repository
}

// NewPruner builds a standalone subscription pruner.
func NewPruner(repo Repository) (*Pruner, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "push repository required")
	}
	return &Pruner{repo: repo}, nil
}

// PruneStale removes subscriptions older than maxAge.
func (p *Pruner) PruneStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "maxAge must be positive")
	}
	count, err := p.repo.DeleteStale(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune push subscriptions")
	}
	return count, nil
}
