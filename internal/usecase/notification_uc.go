package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/logging"
)

// Compile-time check
var _ NotificationUseCase = (*notificationUC)(nil)

const channelTelegram = "telegram"

// Translator renders a localized message.
type Translator interface {
	T(key string, args ...interface{}) string
}

type NotificationUseCase interface {
	// NotifyTerminal announces a finished job once. It reports whether a
	// message was sent.
	NotifyTerminal(ctx context.Context, job model.Job) (bool, error)
	// NotifyBackend announces a change of backend reachability.
	NotifyBackend(ctx context.Context, up bool) error
}

type notificationUC struct {
	bot    adapter.TelegramBotAdapter
	sent   repository.NotificationLogRepository // optional
	tr     Translator
	chatID int64
	log    *zerolog.Logger
}

func NewNotificationUseCase(bot adapter.TelegramBotAdapter, sent repository.NotificationLogRepository, tr Translator, chatID int64, logger *zerolog.Logger) *notificationUC {
	return &notificationUC{bot: bot, sent: sent, tr: tr, chatID: chatID, log: logging.Component(logger, "notification_uc")}
}

func (n *notificationUC) NotifyTerminal(ctx context.Context, job model.Job) (bool, error) {
	if n.chatID == 0 || !job.State.IsTerminal() {
		return false, nil
	}
	kind := string(job.State)
	if n.sent != nil {
		done, err := n.sent.Exists(ctx, nil, job.ID, channelTelegram, kind)
		if err != nil {
			return false, err
		}
		if done {
			return false, nil
		}
	}

	text, rows := n.render(job)
	var err error
	if len(rows) > 0 {
		err = n.bot.SendButtons(ctx, n.chatID, text, rows)
	} else {
		err = n.bot.SendMessage(ctx, n.chatID, text)
	}
	if err != nil {
		return false, err
	}
	if n.sent != nil {
		if err := n.sent.Save(ctx, nil, job.ID, channelTelegram, kind); err != nil {
			logging.With(logging.WithJobID(ctx, job.ID), n.log).Warn().Err(err).Msg("notification sent but not logged")
		}
	}
	return true, nil
}

func (n *notificationUC) render(job model.Job) (string, [][]adapter.InlineButton) {
	switch job.State {
	case model.JobCompleted:
		title := ""
		if job.Result != nil {
			title = job.Result.Title
		}
		text := n.tr.T("job_completed_no_title", job.ID)
		if title != "" {
			text = n.tr.T("job_completed", job.ID, title)
		}
		rows := [][]adapter.InlineButton{{
			{Text: n.tr.T("button_watch"), URL: "https://www.youtube.com/watch?v=" + job.ID},
			{Text: n.tr.T("button_thumbnail"), URL: model.ThumbnailURL(job.ID)},
		}}
		return text, rows
	case model.JobFailed:
		return n.tr.T("job_failed", job.ID, job.Error), nil
	case model.JobTimedOut:
		return n.tr.T("job_timed_out", job.ID), nil
	default:
		return n.tr.T("job_cancelled", job.ID), nil
	}
}

func (n *notificationUC) NotifyBackend(ctx context.Context, up bool) error {
	if n.chatID == 0 {
		return nil
	}
	key := "backend_down"
	if up {
		key = "backend_up"
	}
	return n.bot.SendMessage(ctx, n.chatID, n.tr.T(key))
}
