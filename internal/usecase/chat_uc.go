// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	StartChat(ctx context.Context, jobID string) (*model.ChatSession, error)
	SendMessage(ctx context.Context, sessionID, message string) (*model.ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error)
	ListSessions(ctx context.Context, jobID string) ([]*model.ChatSession, error)
	EndChat(ctx context.Context, sessionID string) error
}

type chatUC struct {
	jobs     *JobClient
	sessions repository.ChatSessionRepository
	tm       repository.TransactionManager // optional
	log      *zerolog.Logger

	locks sync.Map // session id -> *sync.Mutex
}

func NewChatUseCase(jobs *JobClient, sessions repository.ChatSessionRepository, tm repository.TransactionManager, logger *zerolog.Logger) *chatUC {
	return &chatUC{jobs: jobs, sessions: sessions, tm: tm, log: logging.Component(logger, "chat_uc")}
}

// StartChat opens a session on a completed job.
func (c *chatUC) StartChat(ctx context.Context, jobID string) (*model.ChatSession, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id must not be empty", domain.ErrInvalidInput)
	}
	job, ok := c.jobs.Job(jobID)
	if !ok || job.State != model.JobCompleted {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotReady, jobID)
	}

	s := model.NewChatSession(uuid.NewString(), jobID)
	if err := c.sessions.Save(ctx, nil, s); err != nil {
		return nil, err
	}
	metrics.IncChatSession()
	logging.With(logging.WithSessID(ctx, s.ID), c.log).Info().Str("job_id", jobID).Msg("chat session started")
	return s, nil
}

// SendMessage runs one chat turn and persists every turn it appended, including
// the user turn of a failed request. Turns of one session are sent one at a time.
func (c *chatUC) SendMessage(ctx context.Context, sessionID, message string) (*model.ChatSession, error) {
	mu := c.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	s, err := c.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	before := len(s.Turns)
	s, chatErr := c.jobs.SendChatTurn(ctx, s, message)
	if len(s.Turns) == before {
		return s, chatErr
	}

	if err := c.persist(ctx, s, s.Turns[before:]); err != nil {
		logging.With(logging.WithSessID(ctx, s.ID), c.log).Error().Err(err).Msg("persist chat turns")
		if chatErr == nil {
			return s, err
		}
	}
	return s, chatErr
}

func (c *chatUC) persist(ctx context.Context, s *model.ChatSession, turns []model.ChatTurn) error {
	write := func(ctx context.Context, qx any) error {
		for i := range turns {
			if err := c.sessions.SaveTurn(ctx, qx, &turns[i]); err != nil {
				return err
			}
		}
		return c.sessions.Save(ctx, qx, s)
	}
	if c.tm == nil {
		return write(ctx, nil)
	}
	return c.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return write(ctx, tx)
	})
}

func (c *chatUC) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	return c.sessions.FindByID(ctx, nil, sessionID)
}

func (c *chatUC) ListSessions(ctx context.Context, jobID string) ([]*model.ChatSession, error) {
	return c.sessions.FindAllByJob(ctx, nil, jobID)
}

func (c *chatUC) EndChat(ctx context.Context, sessionID string) error {
	if err := c.sessions.Delete(ctx, nil, sessionID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	c.locks.Delete(sessionID)
	return nil
}

func (c *chatUC) lock(sessionID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
