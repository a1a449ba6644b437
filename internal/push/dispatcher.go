package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db/models"
)

// Dispatcher pushes a payload through the gateway to a stored subscription.
// The production dispatcher talks to the web-push service; tests fake it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub *models.PushSubscription, payload Payload) error
	VAPIDPublicKey() string
}

type webPushDispatcher struct {
	cfg config.WebPushConfig
}

// NewWebPushDispatcher builds the VAPID-signed web-push dispatcher.
func NewWebPushDispatcher(cfg config.WebPushConfig) (Dispatcher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("web push keys not configured")
	}
	return &webPushDispatcher{cfg: cfg}, nil
}

func (d *webPushDispatcher) VAPIDPublicKey() string {
	return d.cfg.VAPIDPublicKey
}

// Dispatch sends the payload to the subscription endpoint. A 410 from the
// gateway means the subscription is gone for good and maps to ErrExpired so
// callers can prune it.
func (d *webPushDispatcher) Dispatch(ctx context.Context, sub *models.PushSubscription, payload Payload) error {
	if sub == nil {
		return errors.New("subscription required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  d.cfg.VAPIDPublicKey,
		VAPIDPrivateKey: d.cfg.VAPIDPrivateKey,
		Subscriber:      d.cfg.Subscriber,
		TTL:             d.cfg.TTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}
