package entity

import "time"

const (
	LoyaltyKindAccrual  = "accrual"
	LoyaltyKindReversal = "reversal"
)

// LoyaltyTransaction is an append-only ledger entry. A customer's balance is
// always the sum of their transactions; it is never stored as a counter.
type LoyaltyTransaction struct {
	ID uint64

	CustomerRef string

	// Points is signed: positive for accruals, negative for reversals.
	Points int64

	Kind string

	// Reference ties the entry to the payment that caused it.
	Reference string

	CreatedAt time.Time
}
