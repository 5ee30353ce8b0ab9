package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalEngine/models"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram broadcasts signals to a fixed list of chats
type Telegram struct {
	bot        Sender
	chatIDs    []int64
	maxRetries uint64
	logger     zerolog.Logger
}

// NewTelegram connects to the Bot API with token
func NewTelegram(token string, chatIDs []int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return NewTelegramWithSender(bot, chatIDs), nil
}

// NewTelegramWithSender uses an existing sender
func NewTelegramWithSender(bot Sender, chatIDs []int64) *Telegram {
	return &Telegram{
		bot:        bot,
		chatIDs:    chatIDs,
		maxRetries: 3,
		logger:     log.With().Str("component", "telegram").Logger(),
	}
}

// NotifySignal sends the recommendation to every chat. Delivery failures
// for individual chats are logged and the last one is returned.
func (t *Telegram) NotifySignal(ctx context.Context, rec *models.Recommendation) error {
	text := FormatSignal(rec)

	var lastErr error
	for i, chatID := range t.chatIDs {
		if err := t.send(ctx, chatID, text); err != nil {
			t.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send signal")
			lastErr = err
		}

		// Telegram allows about 30 messages per second per bot
		if i < len(t.chatIDs)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	return lastErr
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	strategy := backoff.NewExponentialBackOff()
	strategy.InitialInterval = 500 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(strategy, t.maxRetries), ctx)

	return backoff.Retry(func() error {
		_, err := t.bot.Send(msg)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
