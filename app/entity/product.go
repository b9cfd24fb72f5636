package entity

import "time"

type Product struct {
	ID uint64

	SKU  string
	Name string

	PriceCents int64
	Currency   string
	Stock      int32

	Active bool

	// Dirty marks a product as changed since its last successful push to a
	// channel; the sync engine clears it once every channel is up to date.
	Dirty bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
