package entity

import "time"

const (
	PaymentStatusPending   int32 = 1
	PaymentStatusSucceeded int32 = 2
	PaymentStatusFailed    int32 = 3
	PaymentStatusRefunded  int32 = 4
)

// PaymentTerminalStatus reports whether a payment status can never change
// again. A succeeded payment is not terminal: it may still be refunded.
func PaymentTerminalStatus(status int32) bool {
	switch status {
	case PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// PaymentCanTransition reports whether moving a payment between the two
// statuses follows the forward-only lifecycle.
func PaymentCanTransition(from, to int32) bool {
	switch from {
	case PaymentStatusPending:
		return to == PaymentStatusSucceeded || to == PaymentStatusFailed
	case PaymentStatusSucceeded:
		return to == PaymentStatusRefunded
	default:
		return false
	}
}

type Payment struct {
	ID uint64

	OrderID uint64

	// ProcessorRef is the payment processor's payment identifier. It is
	// globally unique; all payment writes are upserts keyed on it.
	ProcessorRef string

	Status      int32
	AmountCents int64
	Currency    string

	// Endpoint tags which logical webhook endpoint processed this payment.
	Endpoint string

	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	DisputeStatusOpen int32 = 1
	DisputeStatusWon  int32 = 2
	DisputeStatusLost int32 = 3
)

type Dispute struct {
	ID uint64

	PaymentID uint64

	ProcessorDisputeRef string
	AmountCents         int64
	Reason              string
	Status              int32

	CreatedAt time.Time
}
