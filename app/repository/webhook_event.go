package repository

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

// ErrEventAlreadyProcessed is returned when the (endpoint, event_id) unique
// index rejects a second insert. Concurrent deliveries of the same event
// serialize on that index: the loser sees this error and acknowledges.
var ErrEventAlreadyProcessed = errors.New("event already processed")

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Insert(ctx context.Context, record *entity.WebhookEventRecord) error {
	query := `
		INSERT INTO webhook_events (endpoint, event_id, event_kind, received_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		record.Endpoint,
		record.EventID,
		record.EventKind,
		record.ReceivedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEventAlreadyProcessed
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = uint64(id)
	return nil
}

func (r *WebhookEventRepository) Exists(ctx context.Context, endpoint, eventID string) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM webhook_events
		WHERE endpoint = ? AND event_id = ?
	`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, endpoint, eventID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
