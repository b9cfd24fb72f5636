package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

var ErrSyncLogNotFound = errors.New("sync log not found")

type SyncLogRepository struct {
	db DBTX
}

func NewSyncLogRepository(db DBTX) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

func (r *SyncLogRepository) Create(ctx context.Context, log *entity.SyncLog) error {
	query := `
		INSERT INTO sync_logs (
			run_id, channel_id, operation, started_at, finished_at,
			records_processed, records_failed, success, error
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		log.RunID,
		log.ChannelID,
		log.Operation,
		log.StartedAt,
		nullableTimeValue(log.FinishedAt),
		log.RecordsProcessed,
		log.RecordsFailed,
		log.Success,
		nullableStringValue(log.Error),
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	log.ID = uint64(id)
	return nil
}

func (r *SyncLogRepository) Finish(ctx context.Context, log *entity.SyncLog) error {
	query := `
		UPDATE sync_logs SET
			finished_at = ?,
			records_processed = ?,
			records_failed = ?,
			success = ?,
			error = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableTimeValue(log.FinishedAt),
		log.RecordsProcessed,
		log.RecordsFailed,
		log.Success,
		nullableStringValue(log.Error),
		log.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSyncLogNotFound
	}

	return nil
}

// LastSuccessful returns the most recent finished successful run for the
// channel and operation, or nil when none exists yet.
func (r *SyncLogRepository) LastSuccessful(ctx context.Context, channelID, operation string) (*entity.SyncLog, error) {
	query := `
		SELECT id, run_id, channel_id, operation, started_at, finished_at,
			records_processed, records_failed, success, error
		FROM sync_logs
		WHERE channel_id = ? AND operation = ? AND success = 1 AND finished_at IS NOT NULL
		ORDER BY finished_at DESC
		LIMIT 1
	`

	log := &entity.SyncLog{}
	if err := scanSyncLog(r.db.QueryRowContext(ctx, query, channelID, operation), log); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return log, nil
}

func (r *SyncLogRepository) List(ctx context.Context, channelID, operation string, limit int32) ([]*entity.SyncLog, error) {
	query := `
		SELECT id, run_id, channel_id, operation, started_at, finished_at,
			records_processed, records_failed, success, error
		FROM sync_logs
	`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)

	if channelID != "" {
		conditions = append(conditions, "channel_id = ?")
		args = append(args, channelID)
	}
	if operation != "" {
		conditions = append(conditions, "operation = ?")
		args = append(args, operation)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*entity.SyncLog, 0)
	for rows.Next() {
		item := &entity.SyncLog{}
		if err := scanSyncLog(rows, item); err != nil {
			return nil, err
		}
		logs = append(logs, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}

func scanSyncLog(scan rowScanner, log *entity.SyncLog) error {
	var finishedAt sql.NullTime
	var errMsg sql.NullString

	err := scan.Scan(
		&log.ID,
		&log.RunID,
		&log.ChannelID,
		&log.Operation,
		&log.StartedAt,
		&finishedAt,
		&log.RecordsProcessed,
		&log.RecordsFailed,
		&log.Success,
		&errMsg,
	)
	if err != nil {
		return err
	}

	log.FinishedAt = timePtrFromNull(finishedAt)
	log.Error = stringPtrFromNull(errMsg)
	return nil
}
