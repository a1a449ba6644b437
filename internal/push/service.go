package push

import (
	"context"
	"errors"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/metrics"
	"github.com/google/uuid"
)

// Service is the push delivery surface. Every operation is best-effort:
// missing subscriptions, denied permission and gateway hiccups are logged
// and absorbed, never surfaced to the flows that triggered the push.
type Service interface {
	VAPIDPublicKey() string
	Permission() PermissionState
	RequestPermission(ctx context.Context) PermissionState
	ShowNotification(ctx context.Context, userID uuid.UUID, payload Payload)
	SaveSubscription(ctx context.Context, userID uuid.UUID, keys SubscriptionKeys) error
	SetupSubscription(ctx context.Context, userID uuid.UUID)
	SendPush(ctx context.Context, userID uuid.UUID, payload Payload)
	RemoveSubscription(ctx context.Context, userID uuid.UUID) error
	PruneStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

type service struct {
	capability *Capability
	transport  Transport
	dispatcher Dispatcher
	repo       Repository
	logg       *logger.Logger
	metrics    *metrics.PushMetrics
}

// NewService wires push dependencies. Metrics may be nil outside servers.
func NewService(transport Transport, dispatcher Dispatcher, repo Repository, logg *logger.Logger, pushMetrics *metrics.PushMetrics) (Service, error) {
	if transport == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "push transport required")
	}
	if dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "push dispatcher required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "push repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		capability: NewCapability(),
		transport:  transport,
		dispatcher: dispatcher,
		repo:       repo,
		logg:       logg,
		metrics:    pushMetrics,
	}, nil
}

func (s *service) VAPIDPublicKey() string {
	return s.dispatcher.VAPIDPublicKey()
}

func (s *service) Permission() PermissionState {
	return s.capability.State()
}

// RequestPermission resolves the permission state. Denied answers stick; a
// transport failure leaves the state undecided and is only logged.
func (s *service) RequestPermission(ctx context.Context) PermissionState {
	state, err := s.capability.Request(ctx, s.transport)
	if err != nil {
		s.logg.Error(ctx, "push permission request failed", err)
	}
	return state
}

// ShowNotification displays a notification for the user: agent path first,
// direct fallback on any agent failure. Without granted permission it
// silently does nothing.
func (s *service) ShowNotification(ctx context.Context, userID uuid.UUID, payload Payload) {
	ctx = s.logg.WithUserID(ctx, userID.String())
	if s.RequestPermission(ctx) != PermissionGranted {
		s.logg.Info(ctx, "push permission not granted, skipping display")
		return
	}

	if err := s.showViaAgent(ctx, userID, payload); err == nil {
		s.metrics.IncSent("agent")
		return
	}

	if err := s.transport.ShowDirect(ctx, userID, payload); err != nil {
		s.metrics.IncFailed("direct")
		s.logg.Error(ctx, "direct display failed", err)
		return
	}
	s.metrics.IncSent("direct")
}

func (s *service) showViaAgent(ctx context.Context, userID uuid.UUID, payload Payload) error {
	if err := s.transport.RegisterAgent(ctx); err != nil {
		s.metrics.IncFailed("agent")
		s.logg.Warn(ctx, "agent registration failed, falling back to direct")
		return err
	}
	if err := s.transport.ShowViaAgent(ctx, userID, payload); err != nil {
		s.metrics.IncFailed("agent")
		s.logg.Error(ctx, "agent display failed, falling back to direct", err)
		return err
	}
	return nil
}

// SaveSubscription upserts the endpoint/key triple a user agent registered.
func (s *service) SaveSubscription(ctx context.Context, userID uuid.UUID, keys SubscriptionKeys) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if keys.Endpoint == "" || keys.P256dhKey == "" || keys.AuthKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "endpoint and keys required")
	}

	err := s.repo.Upsert(ctx, &models.PushSubscription{
		UserID:    userID,
		Endpoint:  keys.Endpoint,
		P256dhKey: keys.P256dhKey,
		AuthKey:   keys.AuthKey,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store push subscription")
	}
	return nil
}

// SetupSubscription is idempotent: the stored subscription is reused when
// its endpoint still matches what the transport reports, otherwise the
// fresh registration replaces it. Failures are logged and absorbed.
func (s *service) SetupSubscription(ctx context.Context, userID uuid.UUID) {
	ctx = s.logg.WithUserID(ctx, userID.String())
	if s.RequestPermission(ctx) != PermissionGranted {
		s.logg.Info(ctx, "push permission not granted, skipping subscription")
		return
	}

	keys, err := s.transport.Subscribe(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "push subscribe failed", err)
		return
	}

	stored, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.logg.Error(ctx, "push subscription lookup failed", err)
		return
	}
	if stored != nil && stored.Endpoint == keys.Endpoint {
		return
	}

	if err := s.SaveSubscription(ctx, userID, *keys); err != nil {
		s.logg.Error(ctx, "push subscription store failed", err)
	}
}

// SendPush delivers through the gateway to the user's stored subscription.
// No subscription on file is a normal outcome. An expired subscription is
// pruned and the payload falls back to the direct display path.
func (s *service) SendPush(ctx context.Context, userID uuid.UUID, payload Payload) {
	ctx = s.logg.WithUserID(ctx, userID.String())

	sub, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		s.metrics.IncFailed("agent")
		s.logg.Error(ctx, "push subscription lookup failed", err)
		return
	}
	if sub == nil {
		s.logg.Info(ctx, "no push subscription on file, skipping")
		return
	}

	err = s.dispatcher.Dispatch(ctx, sub, payload)
	if err == nil {
		s.metrics.IncSent("agent")
		return
	}

	if errors.Is(err, ErrExpired) {
		s.metrics.IncExpired()
		s.logg.Warn(ctx, "push subscription expired, pruning")
		if delErr := s.repo.DeleteByUser(ctx, userID); delErr != nil {
			s.logg.Error(ctx, "expired subscription prune failed", delErr)
		}
		if showErr := s.transport.ShowDirect(ctx, userID, payload); showErr == nil {
			s.metrics.IncSent("direct")
		}
		return
	}

	s.metrics.IncFailed("agent")
	s.logg.Error(ctx, "push dispatch failed", err)
}

func (s *service) RemoveSubscription(ctx context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove push subscription")
	}
	return nil
}

// PruneStale removes subscriptions older than maxAge.
func (s *service) PruneStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "maxAge must be positive")
	}
	count, err := s.repo.DeleteStale(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune push subscriptions")
	}
	return count, nil
}
