package entity

import "time"

const (
	OrderStatusCreated    int32 = 1
	OrderStatusConfirmed  int32 = 2
	OrderStatusProcessing int32 = 3
	OrderStatusShipped    int32 = 4
	OrderStatusDelivered  int32 = 10
	OrderStatusCancelled  int32 = 20
)

// OrderTerminalStatus reports whether an order status can never change again.
func OrderTerminalStatus(status int32) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// orderTransitions lists, per current status, the statuses an order may move
// to. Anything not listed is a no-op, never an error.
var orderTransitions = map[int32][]int32{
	OrderStatusCreated:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// OrderCanTransition reports whether moving an order from one status to
// another follows a forward path. Terminal statuses never transition.
func OrderCanTransition(from, to int32) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	ID uint64

	Number      string
	CustomerRef string

	Status     int32
	TotalCents int64
	Currency   string

	ProcessorPaymentRef *string

	Items []*OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID      uint64
	OrderID uint64

	ProductID uint64
	SKU       string

	Quantity       int32
	UnitPriceCents int64
}
