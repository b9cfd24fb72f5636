package mapper

import (
	"strings"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

// OrderStatusFromExternal translates a marketplace order state into the
// canonical order status. The switch is the single place a new external
// status has to be added; anything unknown lands in the default arm and is
// imported as a freshly created order rather than failing the run.
func OrderStatusFromExternal(externalStatus string) (int32, bool) {
	switch strings.ToUpper(strings.TrimSpace(externalStatus)) {
	case "STAGING", "WAITING_ACCEPTANCE", "WAITING_DEBIT", "WAITING_DEBIT_PAYMENT":
		return entity.OrderStatusCreated, true
	case "PAID", "ACCEPTED":
		return entity.OrderStatusConfirmed, true
	case "SHIPPING":
		return entity.OrderStatusProcessing, true
	case "SHIPPED", "TO_COLLECT":
		return entity.OrderStatusShipped, true
	case "RECEIVED", "CLOSED":
		return entity.OrderStatusDelivered, true
	case "CANCELED", "REFUSED":
		return entity.OrderStatusCancelled, true
	default:
		return entity.OrderStatusCreated, false
	}
}
