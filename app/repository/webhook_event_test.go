package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vibast-solutions/ms-go-channel-sync/app/entity"
)

func TestWebhookEventInsertDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookEventRepository(db)

	mock.ExpectExec("INSERT INTO webhook_events").WillReturnError(duplicateEntryErr())

	err := repo.Insert(context.Background(), &entity.WebhookEventRecord{
		Endpoint:   "production",
		EventID:    "evt_1",
		EventKind:  "checkout.session.completed",
		ReceivedAt: time.Now(),
	})
	if !errors.Is(err, ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
}

func TestWebhookEventExists(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWebhookEventRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("production", "evt_1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.Exists(context.Background(), "production", "evt_1")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected event to exist")
	}
}
