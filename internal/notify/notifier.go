package notify

import (
	"context"
	"log/slog"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/errors"
)

// Channel names
const (
	ChannelTelegram = "telegram"
	ChannelSlack    = "slack"
)

// Notifier delivers a plain-text message to a chat channel
type Notifier interface {
	Notify(ctx context.Context, text string) error
	Channel() string
}

// New builds the notifier selected by cfg.Type
func New(cfg config.NotifierConfig, logger *slog.Logger) (Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case "", ChannelTelegram:
		return NewTelegramNotifier(cfg, logger), nil
	case ChannelSlack:
		return NewSlackNotifier(cfg, logger), nil
	default:
		return nil, errors.NewPermanentf("unknown notifier type %q", cfg.Type)
	}
}
