package publisher

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/samgozman/fin-calendar/pkg/errlvl"
)

var (
	errEmptyMessage = errors.New("message is empty")
	errSend         = errors.New("failed to send message")
)

// maxMessageLength is the Telegram limit for a single text message.
const maxMessageLength = 4096

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramPublisher struct {
	ChannelID string // Telegram channel id (e.g. @my_channel)
	BotAPI    sender
	backoff   func() backoff.BackOff
	logger    *slog.Logger
}

func NewTelegramPublisher(channelID, token string) (*TelegramPublisher, error) {
	b, e := tgbotapi.NewBotAPI(token)
	if e != nil {
		return nil, e
	}
	return newTelegramPublisher(channelID, b), nil
}

func newTelegramPublisher(channelID string, s sender) *TelegramPublisher {
	return &TelegramPublisher{
		ChannelID: channelID,
		BotAPI:    s,
		backoff: func() backoff.BackOff {
			bf := backoff.NewExponentialBackOff()
			bf.InitialInterval = 2 * time.Second
			bf.MaxInterval = 10 * time.Second
			bf.MaxElapsedTime = 30 * time.Second
			return bf
		},
		logger: slog.Default(),
	}
}

// WithLogger sets the logger of the publisher.
func (t *TelegramPublisher) WithLogger(l *slog.Logger) *TelegramPublisher {
	t.logger = l
	return t
}

// Publish sends the Markdown message to the channel and returns the id of the published message.
// Failed sends are retried with exponential backoff until ctx is done.
func (t *TelegramPublisher) Publish(ctx context.Context, msg string) (pubID string, err error) {
	if msg == "" {
		return "", newError(errlvl.WARN, errEmptyMessage)
	}
	if len([]rune(msg)) > maxMessageLength {
		msg = string([]rune(msg)[:maxMessageLength])
	}

	tgMsg := tgbotapi.NewMessageToChannel(t.ChannelID, msg)
	tgMsg.ParseMode = tgbotapi.ModeMarkdown
	tgMsg.DisableWebPagePreview = true

	s, err := backoff.RetryNotifyWithData[tgbotapi.Message](
		func() (tgbotapi.Message, error) {
			return t.BotAPI.Send(tgMsg)
		},
		backoff.WithContext(t.backoff(), ctx),
		func(err error, d time.Duration) {
			t.logger.Warn("[publisher] Send failed, retrying", "channel", t.ChannelID, "in", d, "error", err)
		},
	)
	if err != nil {
		return "", newError(errlvl.ERROR, errSend, err)
	}
	return strconv.Itoa(s.MessageID), nil
}
