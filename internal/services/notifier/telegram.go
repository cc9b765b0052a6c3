package notifier

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Telegram delivers notifications through a bot chat with the operator.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegram connects the bot API and returns a notifier posting into the
// operator's chat.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect bot api")
	}
	return &Telegram{bot: bot, chatID: chatID, logger: logger}, nil
}

func (t *Telegram) send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(err, "failed to send notification")
	}
	return nil
}

func (t *Telegram) PurchaseCompleted(_ context.Context, p Purchase) error {
	if err := t.send(purchaseText(p)); err != nil {
		t.logger.Error("failed to deliver purchase notification", zap.Error(err))
		return err
	}
	return nil
}

func (t *Telegram) HardStop(_ context.Context, cause string) error {
	if err := t.send(hardStopText(cause)); err != nil {
		t.logger.Error("failed to deliver hard stop notification", zap.Error(err))
		return err
	}
	return nil
}
