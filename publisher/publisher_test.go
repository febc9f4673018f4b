package publisher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/samgozman/fin-calendar/pkg/errlvl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func newTestPublisher(s sender) *TelegramPublisher {
	p := newTelegramPublisher("@calendar", s)
	p.backoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	return p
}

func TestTelegramPublisher_Publish(t *testing.T) {
	t.Run("sends markdown to the channel", func(t *testing.T) {
		s := new(MockSender)
		s.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
			return c.ChannelUsername == "@calendar" && c.ParseMode == tgbotapi.ModeMarkdown && c.Text == "*Monday*"
		})).Return(tgbotapi.Message{MessageID: 123}, nil).Once()

		id, err := newTestPublisher(s).Publish(context.Background(), "*Monday*")
		require.NoError(t, err)
		assert.Equal(t, "123", id)
		s.AssertExpectations(t)
	})

	t.Run("retries failed sends", func(t *testing.T) {
		s := new(MockSender)
		s.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("Too Many Requests")).Once()
		s.On("Send", mock.Anything).Return(tgbotapi.Message{MessageID: 7}, nil).Once()

		id, err := newTestPublisher(s).Publish(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "7", id)
		s.AssertNumberOfCalls(t, "Send", 2)
	})

	t.Run("gives up after the retries", func(t *testing.T) {
		s := new(MockSender)
		s.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("Bad Gateway"))

		_, err := newTestPublisher(s).Publish(context.Background(), "hello")
		require.Error(t, err)
		assert.ErrorIs(t, err, errSend)
		assert.ErrorIs(t, err, errlvl.ErrError)
		s.AssertNumberOfCalls(t, "Send", 3)
	})

	t.Run("empty message is not sent", func(t *testing.T) {
		s := new(MockSender)

		_, err := newTestPublisher(s).Publish(context.Background(), "")
		assert.ErrorIs(t, err, errEmptyMessage)
		assert.ErrorIs(t, err, errlvl.ErrWarn)
		s.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("long message is truncated", func(t *testing.T) {
		s := new(MockSender)
		s.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
			return len([]rune(c.Text)) == maxMessageLength
		})).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

		_, err := newTestPublisher(s).Publish(context.Background(), strings.Repeat("📅", maxMessageLength+10))
		require.NoError(t, err)
		s.AssertExpectations(t)
	})
}
