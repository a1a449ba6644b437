package enums

// DeliveryStatus tracks a courier assignment from pickup to handoff.
type DeliveryStatus string

const (
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusOnTheWay  DeliveryStatus = "on_the_way"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// IsValid reports whether the status belongs to the known lifecycle.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusAssigned, DeliveryStatusPickedUp, DeliveryStatusOnTheWay, DeliveryStatusDelivered:
		return true
	}
	return false
}
