package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/errors"
)

// DefaultTelegramAPIURL is the public Bot API endpoint
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramNotifier posts messages through the Telegram Bot API
type TelegramNotifier struct {
	APIURL   string
	BotToken string
	ChatID   string
	Client   *http.Client
	logger   *slog.Logger
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// NewTelegramNotifier creates a TelegramNotifier
func NewTelegramNotifier(cfg config.NotifierConfig, logger *slog.Logger) *TelegramNotifier {
	apiURL := strings.TrimRight(cfg.TelegramAPIURL, "/")
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramNotifier{
		APIURL:   apiURL,
		BotToken: cfg.TelegramBotToken,
		ChatID:   cfg.TelegramChatID,
		Client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Channel returns the channel name
func (n *TelegramNotifier) Channel() string {
	return ChannelTelegram
}

// Notify sends text to the configured chat
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if n.BotToken == "" || n.ChatID == "" {
		return errors.NewNotificationError(ChannelTelegram, errors.NewPermanentf("bot token or chat id is not configured"))
	}

	body, err := json.Marshal(telegramMessage{ChatID: n.ChatID, Text: text})
	if err != nil {
		return errors.NewNotificationError(ChannelTelegram, fmt.Errorf("failed to marshal payload: %w", err))
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.APIURL, n.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.NewNotificationError(ChannelTelegram, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of the error.
		return errors.NewNotificationError(ChannelTelegram, errors.NewTransientf("send failed: %v", redact(err, n.BotToken)))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errors.NewNotificationError(ChannelTelegram, errors.NewTransient(cause))
		}
		return errors.NewNotificationError(ChannelTelegram, errors.NewPermanent(cause))
	}

	n.logger.Debug("telegram message sent", "chat_id", n.ChatID, "length", len(text))
	return nil
}

func redact(err error, secret string) string {
	msg := err.Error()
	if secret == "" {
		return msg
	}
	return strings.ReplaceAll(msg, secret, "***")
}
