// File: internal/usecase/video_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

var _ VideoUseCase = (*videoUC)(nil)

// VideoUseCase manages the backend's library of processed videos.
type VideoUseCase interface {
	List(ctx context.Context) ([]model.Video, error)
	Rename(ctx context.Context, id, title string) (string, error)
	Delete(ctx context.Context, id string) error
	Health(ctx context.Context) bool
}

type videoUC struct {
	backend adapter.VideoBackend
	jobs    *JobClient // optional; tracked jobs are dropped on delete
	log     *zerolog.Logger
}

func NewVideoUseCase(backend adapter.VideoBackend, jobs *JobClient, logger *zerolog.Logger) *videoUC {
	return &videoUC{backend: backend, jobs: jobs, log: logging.Component(logger, "video_uc")}
}

func (v *videoUC) List(ctx context.Context) ([]model.Video, error) {
	videos, err := v.backend.ListVideos(ctx)
	if err != nil {
		return nil, err
	}
	for i := range videos {
		videos[i].Title = videos[i].DisplayTitle()
	}
	return videos, nil
}

func (v *videoUC) Rename(ctx context.Context, id, title string) (string, error) {
	id, title = strings.TrimSpace(id), strings.TrimSpace(title)
	if id == "" || title == "" {
		return "", fmt.Errorf("%w: video id and title are required", domain.ErrInvalidInput)
	}
	stored, err := v.backend.UpdateVideoTitle(ctx, id, title)
	if err != nil {
		return "", err
	}
	logging.With(ctx, v.log).Info().Str("job_id", id).Msg("video renamed")
	return stored, nil
}

func (v *videoUC) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: video id is required", domain.ErrInvalidInput)
	}
	// a failed delete leaves the tracked job untouched
	if err := v.backend.DeleteVideo(ctx, id); err != nil {
		return err
	}
	if v.jobs != nil {
		if err := v.jobs.Cancel(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		v.jobs.Forget(id)
	}
	logging.With(ctx, v.log).Info().Str("job_id", id).Msg("video deleted")
	return nil
}

func (v *videoUC) Health(ctx context.Context) bool {
	up := v.backend.Health(ctx)
	metrics.SetBackendUp(up)
	return up
}
