package repository

import (
	"context"
	"time"

	"vidiwise/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

type ChatSessionRepository interface {
	Save(ctx context.Context, qx any, session *model.ChatSession) error
	SaveTurn(ctx context.Context, qx any, turn *model.ChatTurn) error
	Delete(ctx context.Context, qx any, id string) error
	FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error)
	FindAllByJob(ctx context.Context, qx any, jobID string) ([]*model.ChatSession, error)
	// CleanupOldTurns deletes turns older than retention and returns how many were removed.
	CleanupOldTurns(ctx context.Context, retention time.Duration) (int64, error)
}
