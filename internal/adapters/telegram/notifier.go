package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/ports"
)

// Notifier implements ports.Notifier by sending formatted events to a
// Telegram chat. Delivery is bounded by an internal timeout and is best
// effort: callers log failures and carry on trading.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger ports.Logger
}

// Config holds configuration for the Telegram notifier.
type Config struct {
	Token   string
	ChatID  int64
	Timeout time.Duration // per-send bound, default 5s
	Logger  ports.Logger
}

// New creates a Telegram notifier and verifies the token against the Bot API.
func New(cfg Config) (*Notifier, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for telegram notifier")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is required for telegram notifier")
	}
	if cfg.ChatID == 0 {
		return nil, fmt.Errorf("chat ID is required for telegram notifier")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	// A bounded HTTP client keeps a stalled Telegram API from ever holding
	// up the trading pipeline.
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	cfg.Logger.Info(context.Background(), "Telegram bot authorized", map[string]interface{}{"username": api.Self.UserName})

	return &Notifier{api: api, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Notify formats and sends the event to the operator chat.
func (n *Notifier) Notify(ctx context.Context, event domain.Event) error {
	op := "Notify"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatEvent(event))
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrNotificationSend, err)
	}
	n.logger.Debug(ctx, op+": event delivered", map[string]interface{}{"kind": event.Kind, "symbol": event.Symbol})
	return nil
}
