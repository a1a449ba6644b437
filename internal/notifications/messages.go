package notifications

import (
	"fmt"

	"github.com/comedorlabs/comedor-backend/pkg/enums"
)

// notificationContent is the rendered title/message pair for a record.
type notificationContent struct {
	Title   string
	Message string
	Generic bool
}

// orderStatusContent maps an order status onto diner-facing copy. Unknown
// statuses still produce a record with a generic message; creation never
// fails on copy. The extra suffix is only attached to known statuses; the
// generic fallback stays bare.
func orderStatusContent(status enums.OrderStatus, extra string) notificationContent {
	var content notificationContent
	switch status {
	case enums.OrderStatusPending:
		content = notificationContent{Title: "Order received", Message: "We got your order and sent it to the kitchen."}
	case enums.OrderStatusPreparing:
		content = notificationContent{Title: "Order in the kitchen", Message: "Your order is being prepared."}
	case enums.OrderStatusReady:
		content = notificationContent{Title: "Order ready", Message: "Your order is ready for pickup."}
	case enums.OrderStatusDelivered:
		content = notificationContent{Title: "Order delivered", Message: "Your order has been delivered. Enjoy!"}
	case enums.OrderStatusCancelled:
		content = notificationContent{Title: "Order cancelled", Message: "Your order was cancelled. Contact us if this looks wrong."}
	default:
		return notificationContent{
			Title:   "Order updated",
			Message: fmt.Sprintf("Your order status changed to %s.", status),
			Generic: true,
		}
	}
	if extra != "" {
		content.Message = fmt.Sprintf("%s %s", content.Message, extra)
	}
	return content
}

// deliveryContent maps a delivery status onto diner-facing copy. The ETA
// suffix is only attached to known statuses; the generic fallback stays bare.
func deliveryContent(status enums.DeliveryStatus, etaMinutes *int) notificationContent {
	var content notificationContent
	switch status {
	case enums.DeliveryStatusAssigned:
		content = notificationContent{Title: "Courier assigned", Message: "A courier has been assigned to your order."}
	case enums.DeliveryStatusPickedUp:
		content = notificationContent{Title: "Order picked up", Message: "Your order is with the courier."}
	case enums.DeliveryStatusOnTheWay:
		content = notificationContent{Title: "Order on the way", Message: "Your order is on its way."}
	case enums.DeliveryStatusDelivered:
		content = notificationContent{Title: "Order delivered", Message: "Your order has arrived."}
	default:
		return notificationContent{
			Title:   "Delivery updated",
			Message: fmt.Sprintf("Your delivery status changed to %s.", status),
			Generic: true,
		}
	}
	if etaMinutes != nil && *etaMinutes > 0 && status != enums.DeliveryStatusDelivered {
		content.Message = fmt.Sprintf("%s Estimated arrival in %d min.", content.Message, *etaMinutes)
	}
	return content
}
