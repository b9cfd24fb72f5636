package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

func TestSyncLogLastSuccessful(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	started := time.Now().Add(-time.Hour)
	finished := started.Add(time.Minute)
	rows := sqlmock.NewRows([]string{
		"id", "run_id", "channel_id", "operation", "started_at", "finished_at",
		"records_processed", "records_failed", "success", "error",
	}).AddRow(3, "f4f9a01e-8c26-4a6e-9a6b-2f1e6d7c0d11", "mira", entity.SyncOperationOrderPull, started, finished, 12, 0, true, nil)

	mock.ExpectQuery("SELECT (.+) FROM sync_logs").
		WithArgs("mira", entity.SyncOperationOrderPull).
		WillReturnRows(rows)

	log, err := repo.LastSuccessful(context.Background(), "mira", entity.SyncOperationOrderPull)
	if err != nil {
		t.Fatalf("last successful failed: %v", err)
	}
	if log == nil || log.ID != 3 || !log.Success || log.FinishedAt == nil {
		t.Fatalf("unexpected log: %+v", log)
	}
	if log.RunID != "f4f9a01e-8c26-4a6e-9a6b-2f1e6d7c0d11" {
		t.Fatalf("unexpected run id %q", log.RunID)
	}
	if log.Error != nil {
		t.Fatalf("expected nil error message, got %q", *log.Error)
	}
}

func TestSyncLogLastSuccessfulMissingReturnsNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM sync_logs").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "run_id", "channel_id", "operation", "started_at", "finished_at",
			"records_processed", "records_failed", "success", "error",
		}))

	log, err := repo.LastSuccessful(context.Background(), "mira", entity.SyncOperationOrderPull)
	if err != nil {
		t.Fatalf("expected nil error on miss, got %v", err)
	}
	if log != nil {
		t.Fatalf("expected nil log, got %+v", log)
	}
}

func TestSyncLogFinishMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	mock.ExpectExec("UPDATE sync_logs SET").WillReturnResult(sqlmock.NewResult(0, 0))

	finished := time.Now()
	err := repo.Finish(context.Background(), &entity.SyncLog{ID: 404, FinishedAt: &finished, Success: true})
	if !errors.Is(err, ErrSyncLogNotFound) {
		t.Fatalf("expected ErrSyncLogNotFound, got %v", err)
	}
}
