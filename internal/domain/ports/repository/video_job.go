package repository

import (
	"context"

	"vidiwise/internal/domain/model"
)

// VideoJobRepository keeps the history of jobs that reached a terminal state.
type VideoJobRepository interface {
	Save(ctx context.Context, qx any, job *model.Job) error
	FindByID(ctx context.Context, qx any, id string) (*model.Job, error)
	ListRecent(ctx context.Context, qx any, limit int) ([]*model.Job, error)
}
