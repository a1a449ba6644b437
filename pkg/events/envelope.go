package events

import (
	"encoding/json"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/enums"
	"github.com/google/uuid"
)

// AttributeEventType is the pubsub message attribute carrying the event type.
const AttributeEventType = "event_type"

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure published on the domain topic.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// OrderStatusChangedEvent is emitted whenever a kitchen order moves through its lifecycle.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"orderId"`
	UserID     uuid.UUID         `json:"userId"`
	Status     enums.OrderStatus `json:"status"`
	Note       string            `json:"note,omitempty"`
	ETAMinutes *int              `json:"etaMinutes,omitempty"`
}

// DeliveryUpdatedEvent is emitted when a courier reports progress on an order.
type DeliveryUpdatedEvent struct {
	DeliveryID uuid.UUID            `json:"deliveryId"`
	OrderID    uuid.UUID            `json:"orderId"`
	UserID     uuid.UUID            `json:"userId"`
	Status     enums.DeliveryStatus `json:"status"`
	Courier    string               `json:"courier,omitempty"`
	ETAMinutes *int                 `json:"etaMinutes,omitempty"`
}

// PromotionPublishedEvent announces a menu promotion to a set of diners.
type PromotionPublishedEvent struct {
	PromotionID uuid.UUID   `json:"promotionId"`
	Title       string      `json:"title"`
	Message     string      `json:"message"`
	UserIDs     []uuid.UUID `json:"userIds"`
}

// SystemAnnouncementEvent carries operational notices for a set of diners.
type SystemAnnouncementEvent struct {
	Title   string      `json:"title"`
	Message string      `json:"message"`
	UserIDs []uuid.UUID `json:"userIds"`
}
