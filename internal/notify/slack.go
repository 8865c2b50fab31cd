package notify

import (
	"context"
	"log/slog"

	"github.com/slack-go/slack"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/errors"
)

// SlackPoster is the part of the Slack client the notifier uses
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts messages with a bot token
type SlackNotifier struct {
	client    SlackPoster
	channelID string
	logger    *slog.Logger
}

// NewSlackNotifier creates a SlackNotifier backed by the Slack Web API
func NewSlackNotifier(cfg config.NotifierConfig, logger *slog.Logger) *SlackNotifier {
	var client SlackPoster
	if cfg.SlackBotToken != "" {
		client = slack.New(cfg.SlackBotToken)
	}
	return NewSlackNotifierWithClient(client, cfg.SlackChannel, logger)
}

// NewSlackNotifierWithClient creates a SlackNotifier around an existing client
func NewSlackNotifierWithClient(client SlackPoster, channelID string, logger *slog.Logger) *SlackNotifier {
	if channelID == "" {
		channelID = "#general"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackNotifier{client: client, channelID: channelID, logger: logger}
}

// Channel returns the channel name
func (n *SlackNotifier) Channel() string {
	return ChannelSlack
}

// Notify posts text to the configured channel
func (n *SlackNotifier) Notify(ctx context.Context, text string) error {
	if n.client == nil {
		return errors.NewNotificationError(ChannelSlack, errors.NewPermanentf("slack bot token is not configured"))
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return errors.NewNotificationError(ChannelSlack, err)
	}

	n.logger.Debug("slack message posted", "channel", n.channelID, "ts", ts)
	return nil
}
