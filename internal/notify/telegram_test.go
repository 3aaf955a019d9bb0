package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/astromon/skywatch-core/internal/infrastructure/config"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

func newTestTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTelegram(config.TelegramConfig{
		Enabled:  true,
		BotToken: "test-token",
		BaseURL:  srv.URL,
		Timeout:  5,
	}, logging.Default())
}

func TestSend_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			t.Errorf("writing response: %v", err)
		}
	})

	if err := tg.Send(context.Background(), "12345", "temperature high"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("request path = %q, want /bottest-token/sendMessage", gotPath)
	}
	if gotBody["chat_id"] != "12345" {
		t.Errorf("chat_id = %q, want 12345", gotBody["chat_id"])
	}
	if gotBody["text"] != "temperature high" {
		t.Errorf("text = %q, want message body", gotBody["text"])
	}
}

func TestSend_APIError(t *testing.T) {
	tg := newTestTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		if _, err := w.Write([]byte(`{"ok":false,"description":"chat not found"}`)); err != nil {
			t.Errorf("writing response: %v", err)
		}
	})

	err := tg.Send(context.Background(), "99999", "hello")
	if err == nil {
		t.Fatal("Send() expected error for rejected message, got nil")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Send() error = %v, want description included", err)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	tg := NewTelegram(config.TelegramConfig{BaseURL: "https://api.telegram.org", Timeout: 5}, logging.Default())

	err := tg.Send(context.Background(), "12345", "hello")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Send() error = %v, want ErrNotConfigured", err)
	}
}
