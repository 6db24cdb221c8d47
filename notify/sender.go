package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/slack-go/slack"
)

// Channel names accepted in NOTIFICATION_CHANNELS.
const (
	ChannelLogger   = "logger"
	ChannelSlack    = "slack"
	ChannelTelegram = "telegram"
)

// Sender delivers a batch of notifications to one channel.
type Sender interface {
	Send(ctx context.Context, list []Notification) error
}

// Options carries channel credentials.
type Options struct {
	SlackWebhookURL  string
	TelegramToken    string
	TelegramChatID   int64
	TelegramEndpoint string // tgbotapi.APIEndpoint when empty
	HTTPClient       *http.Client
	Logger           *slog.Logger
}

// NewSender builds the sender for channel.
func NewSender(channel string, opts Options) (Sender, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	switch strings.TrimSpace(channel) {
	case ChannelLogger, "":
		return LogSender{Logger: opts.Logger}, nil
	case ChannelSlack:
		if opts.SlackWebhookURL == "" {
			return nil, errors.New("notify: SLACK_WEBHOOK_URL is not set")
		}
		return &SlackSender{WebhookURL: opts.SlackWebhookURL, Client: opts.HTTPClient}, nil
	case ChannelTelegram:
		return NewTelegramSender(opts)
	}
	return nil, fmt.Errorf("notify: unknown channel %q", channel)
}

// LogSender writes notifications to the structured log.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, list []Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, n := range list {
		logger.InfoContext(ctx, "notification", "type", n.Type, "event", n.EventID, "title", n.Title, "message", n.Message)
	}
	return nil
}

// SlackSender posts to an incoming webhook.
type SlackSender struct {
	WebhookURL string
	Client     *http.Client
}

func (s *SlackSender) Send(ctx context.Context, list []Notification) error {
	if len(list) == 0 {
		return nil
	}
	blocks := make([]slack.Block, 0, 2*len(list))
	lines := make([]string, 0, len(list))
	for _, n := range list {
		blocks = append(blocks,
			slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, n.Title, false, false)),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, n.Message, false, false), nil, nil),
		)
		lines = append(lines, n.Title+" "+strings.ReplaceAll(n.Message, "\n", " "))
	}
	msg := &slack.WebhookMessage{
		Text:   strings.Join(lines, "\n"),
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, s.Client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}

// TelegramSender sends one message per batch to a chat.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender authenticates the bot with getMe.
func NewTelegramSender(opts Options) (*TelegramSender, error) {
	if opts.TelegramToken == "" || opts.TelegramChatID == 0 {
		return nil, errors.New("notify: TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	endpoint := opts.TelegramEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(opts.TelegramToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: opts.TelegramChatID}, nil
}

func (s *TelegramSender) Send(_ context.Context, list []Notification) error {
	if len(list) == 0 {
		return nil
	}
	var b strings.Builder
	for i, n := range list {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "*%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, n.Title), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, n.Message))
	}
	msg := tgbotapi.NewMessage(s.chatID, b.String())
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
