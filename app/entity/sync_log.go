package entity

import "time"

const (
	SyncOperationCatalogPush = "catalog_push"
	SyncOperationOrderPull   = "order_pull"
)

// SyncLog records one synchronization run for one channel and operation. The
// order-pull watermark is computed from the finish time of the last
// successful run; Success means the run completed its external fetch and
// recorded an outcome for every item it attempted, not that every item
// succeeded.
type SyncLog struct {
	ID uint64

	// RunID is a globally unique token minted when the run starts; it keys
	// run-finished notifications so consumers can correlate across systems.
	RunID string

	ChannelID string
	Operation string

	StartedAt  time.Time
	FinishedAt *time.Time

	RecordsProcessed int32
	RecordsFailed    int32

	Success bool
	Error   *string
}
