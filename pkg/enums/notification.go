package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres. The set is
// closed; the type is routing metadata and never changes after creation.
type NotificationType string

const (
	NotificationTypeOrderStatus NotificationType = "order_status"
	NotificationTypeDelivery    NotificationType = "delivery"
	NotificationTypePromotion   NotificationType = "promotion"
	NotificationTypeSystem      NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrderStatus,
	NotificationTypeDelivery,
	NotificationTypePromotion,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
