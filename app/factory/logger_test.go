package factory

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewModuleLogger(t *testing.T) {
	logger := NewModuleLogger("sync")
	if logger == nil {
		t.Fatal("expected logger")
	}
}

func TestLoggerWithContextAddsRequestID(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	logger := LoggerWithContext(NewModuleLogger("sync"), ctx)
	if logger == nil {
		t.Fatal("expected logger with context")
	}
}

func TestConfigureLoggingRejectsBadLevel(t *testing.T) {
	if err := ConfigureLogging("chatty"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if err := ConfigureLogging("debug"); err != nil {
		t.Fatalf("expected debug level accepted, got %v", err)
	}
}
