package notifications

import (
	"context"
	"sync"

	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/google/uuid"
)

// Manager owns the active reconciler and swaps it when the signed-in user
// changes. The previous reconciler is torn down synchronously before the
// next one starts, so no event for the old user can reach the new view.
type Manager struct {
	svc    Service
	broker *Broker
	logg   *logger.Logger
	opts   ReconcilerOptions

	mu      sync.Mutex
	current *running
}

type running struct {
	reconciler *Reconciler
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewManager wires the reconciler lifecycle dependencies.
func NewManager(svc Service, broker *Broker, logg *logger.Logger, opts ReconcilerOptions) (*Manager, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if broker == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "feed broker required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Manager{svc: svc, broker: broker, logg: logg, opts: opts}, nil
}

// SetUser swaps the active identity. A nil user stops the current reconciler
// without starting a new one (sign-out).
func (m *Manager) SetUser(ctx context.Context, userID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if userID != nil && m.current.reconciler.UserID() == *userID {
			return nil
		}
		m.current.cancel()
		<-m.current.done
		m.current = nil
	}

	if userID == nil {
		return nil
	}

	reconciler, err := NewReconciler(m.svc, m.broker, m.logg, *userID, m.opts)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		reconciler.Run(runCtx)
	}()

	m.current = &running{reconciler: reconciler, cancel: cancel, done: done}
	return nil
}

// Current returns the active reconciler, or nil when signed out.
func (m *Manager) Current() *Reconciler {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.reconciler
}

// Close stops the active reconciler and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return
	}
	m.current.cancel()
	<-m.current.done
	m.current = nil
}
