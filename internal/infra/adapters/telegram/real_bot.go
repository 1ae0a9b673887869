package telegram

import (
	"context"
	"errors"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

var _ adapter.TelegramBotAdapter = (*BotNotifier)(nil)

// BotNotifier pushes job notifications to Telegram chats. It only sends;
// it never polls for updates.
type BotNotifier struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewBotNotifier(token string, logger *zerolog.Logger) (*BotNotifier, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &BotNotifier{bot: bot, log: logging.Component(logger, "telegram")}, nil
}

// NewBotNotifierWithEndpoint talks to a custom Bot API endpoint, such as a
// local bot API server. endpoint has the form "http://host/bot%s/%s".
func NewBotNotifierWithEndpoint(token, endpoint string, client *http.Client, logger *zerolog.Logger) (*BotNotifier, error) {
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, err
	}
	return &BotNotifier{bot: bot, log: logging.Component(logger, "telegram")}, nil
}

func (b *BotNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *BotNotifier) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if kb, ok := keyboard(rows); ok {
		msg.ReplyMarkup = kb
	}
	return b.send(ctx, msg)
}

func (b *BotNotifier) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.bot.Send(msg); err != nil {
		metrics.IncNotification("failed")
		logging.With(ctx, b.log).Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("telegram send failed")
		return err
	}
	metrics.IncNotification("sent")
	return nil
}

func keyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	var kb [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
			}
		}
		if len(btns) > 0 {
			kb = append(kb, tgbotapi.NewInlineKeyboardRow(btns...))
		}
	}
	if len(kb) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...), true
}
