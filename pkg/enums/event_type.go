package enums

// DomainEventType enumerates the events published on the domain topic.
type DomainEventType string

const (
	EventOrderStatusChanged DomainEventType = "order.status_changed"
	EventDeliveryUpdated    DomainEventType = "delivery.updated"
	EventPromotionPublished DomainEventType = "promotion.published"
	EventSystemAnnouncement DomainEventType = "system.announcement"
)

// IsValid reports whether the event type is one the backend publishes.
func (t DomainEventType) IsValid() bool {
	switch t {
	case EventOrderStatusChanged, EventDeliveryUpdated, EventPromotionPublished, EventSystemAnnouncement:
		return true
	}
	return false
}
