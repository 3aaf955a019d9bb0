package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/astromon/skywatch-core/internal/infrastructure/config"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

// ErrNotConfigured is returned when sending without a bot token.
var ErrNotConfigured = errors.New("notify: telegram not configured")

// telegramResponse is the envelope Telegram wraps every reply in.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram delivers alert messages through the Telegram Bot API.
//
// Thread Safety:
//   - Send is safe for concurrent use; resty clients are goroutine-safe.
type Telegram struct {
	client *resty.Client
	token  string
	logger *logging.Logger
}

// NewTelegram creates a Telegram notifier from configuration.
//
// Parameters:
//   - cfg: Telegram section of config.yaml (token, base URL, timeout)
//   - logger: Structured logger
//
// Returns:
//   - *Telegram: Notifier ready for use (sends fail with ErrNotConfigured
//     if the bot token is empty)
func NewTelegram(cfg config.TelegramConfig, logger *logging.Logger) *Telegram {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.Timeout) * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Telegram{
		client: client,
		token:  cfg.BotToken,
		logger: logger.With("component", "notify"),
	}
}

// Send delivers one message to one chat via the sendMessage method.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - chatID: Telegram chat identifier
//   - message: Plain-text message body
//
// Returns:
//   - error: Transport failure, non-2xx status, or API-level rejection
func (t *Telegram) Send(ctx context.Context, chatID, message string) error {
	if t.token == "" {
		return ErrNotConfigured
	}

	var result telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": chatID,
			"text":    message,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("calling telegram sendMessage: %w", err)
	}

	if resp.IsError() || !result.OK {
		t.logger.Warn("telegram rejected message",
			"chat_id", chatID,
			"status", resp.StatusCode(),
			"description", result.Description,
		)
		return fmt.Errorf("notify: telegram status %d: %s", resp.StatusCode(), result.Description)
	}

	t.logger.Debug("telegram message delivered", "chat_id", chatID)
	return nil
}
