package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/infra/logging"
)

var _ adapter.TelegramBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs notifications instead of sending them. It is used when
// no bot token is configured.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	return &NoopBotAdapter{log: logging.Component(logger, "telegram_noop")}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("notification")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := 0
	for _, r := range rows {
		n += len(r)
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("buttons", n).Msg("notification")
	return nil
}
