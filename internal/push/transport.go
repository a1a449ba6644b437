package push

import (
	"context"
	"errors"

	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/google/uuid"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON shown on a device.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// SubscriptionKeys is the endpoint/key triple a user agent hands back when
// it subscribes against the VAPID public key.
type SubscriptionKeys struct {
	Endpoint  string `json:"endpoint" validate:"required,url"`
	P256dhKey string `json:"p256dhKey" validate:"required"`
	AuthKey   string `json:"authKey" validate:"required"`
}

// Transport abstracts the delivery surface for one user's devices: the
// permission prompt, the agent (service worker) display path, the direct
// display fallback and subscription derivation. Tests swap in fakes.
type Transport interface {
	RequestPermission(ctx context.Context) (PermissionState, error)
	RegisterAgent(ctx context.Context) error
	ShowViaAgent(ctx context.Context, userID uuid.UUID, payload Payload) error
	ShowDirect(ctx context.Context, userID uuid.UUID, payload Payload) error
	Subscribe(ctx context.Context, userID uuid.UUID) (*SubscriptionKeys, error)
}

// gatewayTransport is the production transport: display goes through the
// web-push gateway to the subscriber's registered agent. The direct path on
// a headless backend degrades to a structured delivery log, which keeps the
// fallback observable without pretending a screen exists.
type gatewayTransport struct {
	cfg        config.WebPushConfig
	dispatcher Dispatcher
	repo       Repository
	logg       *logger.Logger
}

// NewGatewayTransport wires the web-push backed transport.
func NewGatewayTransport(cfg config.WebPushConfig, dispatcher Dispatcher, repo Repository, logg *logger.Logger) (Transport, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher required")
	}
	if repo == nil {
		return nil, errors.New("push repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &gatewayTransport{cfg: cfg, dispatcher: dispatcher, repo: repo, logg: logg}, nil
}

// RequestPermission answers denied, without error, when web push is not
// configured for this deployment.
func (t *gatewayTransport) RequestPermission(ctx context.Context) (PermissionState, error) {
	if !t.cfg.Enabled() {
		return PermissionDenied, nil
	}
	return PermissionGranted, nil
}

func (t *gatewayTransport) RegisterAgent(ctx context.Context) error {
	if !t.cfg.Enabled() {
		return errors.New("web push not configured")
	}
	return nil
}

func (t *gatewayTransport) ShowViaAgent(ctx context.Context, userID uuid.UUID, payload Payload) error {
	sub, err := t.repo.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	if sub == nil {
		return errors.New("no subscription on file")
	}
	return t.dispatcher.Dispatch(ctx, sub, payload)
}

func (t *gatewayTransport) ShowDirect(ctx context.Context, userID uuid.UUID, payload Payload) error {
	ctx = t.logg.WithFields(ctx, map[string]any{
		"user_id": userID.String(),
		"title":   payload.Title,
		"path":    "direct",
	})
	t.logg.Info(ctx, "push delivered via direct fallback")
	return nil
}

// Subscribe reuses the stored subscription; deriving fresh key material is
// the user agent's job, so a backend transport can only hand back what the
// agent registered earlier.
func (t *gatewayTransport) Subscribe(ctx context.Context, userID uuid.UUID) (*SubscriptionKeys, error) {
	sub, err := t.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, errors.New("no subscription on file")
	}
	return &SubscriptionKeys{
		Endpoint:  sub.Endpoint,
		P256dhKey: sub.P256dhKey,
		AuthKey:   sub.AuthKey,
	}, nil
}
