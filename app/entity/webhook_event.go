package entity

import "time"

// WebhookEventRecord is the dedup ledger entry for one processed external
// event. Write-once: (endpoint, event_id) carries a unique index and rows are
// never updated.
type WebhookEventRecord struct {
	ID uint64

	Endpoint string
	EventID  string

	EventKind string

	ReceivedAt time.Time
}
