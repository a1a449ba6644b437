package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	"github.com/comedorlabs/comedor-backend/pkg/enums"
	"github.com/comedorlabs/comedor-backend/pkg/events"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/google/uuid"
)

const domainEventConsumer = "notifications-worker"

type pushSender interface {
	SendPush(ctx context.Context, userID uuid.UUID, payload push.Payload)
}

type idempotencyGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer watches domain events and turns them into notification records
// plus a best-effort push per affected user.
type Consumer struct {
	svc          Service
	pusher       pushSender
	subscription *pubsub.Subscriber
	idempotency  idempotencyGuard
	logg         *logger.Logger
}

// NewConsumer builds the domain event consumer. The push sender may be nil
// when the worker runs without web push configured.
func NewConsumer(svc Service, pusher pushSender, subscription *pubsub.Subscriber, guard idempotencyGuard, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		svc:          svc,
		pusher:       pusher,
		subscription: subscription,
		idempotency:  guard,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.DomainEventType(msg.Attributes[events.AttributeEventType])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if !eventType.IsValid() {
		c.logg.Info(logCtx, "skipping unhandled event type")
		return processResult{ack: true}
	}

	var envelope events.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainEventConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handle(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainEventConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handle(ctx context.Context, eventType enums.DomainEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventOrderStatusChanged:
		var payload events.OrderStatusChangedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse order status payload: %w", err)
		}
		return c.handleOrderStatus(ctx, payload, logCtx)
	case enums.EventDeliveryUpdated:
		var payload events.DeliveryUpdatedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse delivery payload: %w", err)
		}
		return c.handleDelivery(ctx, payload, logCtx)
	case enums.EventPromotionPublished:
		var payload events.PromotionPublishedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse promotion payload: %w", err)
		}
		return c.handlePromotion(ctx, payload, logCtx)
	case enums.EventSystemAnnouncement:
		var payload events.SystemAnnouncementEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse announcement payload: %w", err)
		}
		return c.handleAnnouncement(ctx, payload, logCtx)
	}
	return nil
}

func (c *Consumer) handleOrderStatus(ctx context.Context, payload events.OrderStatusChangedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notification, err := c.svc.CreateOrderStatus(ctx, payload.UserID, payload.OrderID, payload.Status, payload.Note)
	if err != nil {
		return err
	}
	c.push(ctx, notification)
	c.logg.Info(logCtx, "order status notification created")
	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, payload events.DeliveryUpdatedEvent, logCtx context.Context) error {
	if payload.UserID == uuid.Nil {
		return fmt.Errorf("user id missing")
	}
	notification, err := c.svc.CreateDelivery(ctx, payload.UserID, payload.DeliveryID, payload.Status, payload.ETAMinutes)
	if err != nil {
		return err
	}
	c.push(ctx, notification)
	c.logg.Info(logCtx, "delivery notification created")
	return nil
}

func (c *Consumer) handlePromotion(ctx context.Context, payload events.PromotionPublishedEvent, logCtx context.Context) error {
	if payload.Title == "" || payload.Message == "" {
		return fmt.Errorf("promotion title and message required")
	}
	for _, userID := range payload.UserIDs {
		if userID == uuid.Nil {
			continue
		}
		notification, err := c.svc.CreatePromotion(ctx, userID, payload.Title, payload.Message, payload.PromotionID)
		if err != nil {
			c.logg.Error(c.logg.WithUserID(logCtx, userID.String()), "promotion notification failed", err)
			continue
		}
		c.push(ctx, notification)
	}
	c.logg.Info(logCtx, "promotion notifications created")
	return nil
}

func (c *Consumer) handleAnnouncement(ctx context.Context, payload events.SystemAnnouncementEvent, logCtx context.Context) error {
	created, err := c.svc.SendBulk(ctx, payload.UserIDs, enums.NotificationTypeSystem, payload.Title, payload.Message)
	if err != nil {
		return err
	}
	for i := range created {
		c.push(ctx, &created[i])
	}
	c.logg.Info(c.logg.WithField(logCtx, "sent", len(created)), "system announcement delivered")
	return nil
}

func (c *Consumer) push(ctx context.Context, notification *models.Notification) {
	if c.pusher == nil || notification == nil {
		return
	}
	c.pusher.SendPush(ctx, notification.UserID, push.Payload{
		Title: notification.Title,
		Body:  notification.Message,
		Tag:   notification.ID.String(),
	})
}
