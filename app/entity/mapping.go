package entity

import "time"

const (
	MappingStatusActive int32 = 1
	MappingStatusEnded  int32 = 2
	MappingStatusError  int32 = 3
)

// ProductMapping relates one canonical product to its listing within one
// channel. (product_id, channel_id) and (external_id, channel_id) are both
// unique. Mappings are never hard-deleted, only marked ended.
type ProductMapping struct {
	ID uint64

	ProductID uint64
	ChannelID string

	ExternalID string

	Status     int32
	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderMapping relates one canonical order to the external order it was
// imported from. One external order can never produce two canonical orders.
type OrderMapping struct {
	ID uint64

	OrderID   uint64
	ChannelID string

	ExternalID string

	Status     int32
	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
