package adapter

import (
	"context"

	"vidiwise/internal/domain/model"
)

// StatusReport is the backend's answer to a status request.
type StatusReport struct {
	VideoID       string
	Status        model.RemoteStatus
	Title         string
	Summary       string
	Folder        string
	AutoGenerated bool
}

// VideoBackend is the port for the remote video analysis service.
// Implementations return *domain.RemoteError for failed round trips.
type VideoBackend interface {
	// ProcessVideo creates a job for url and returns its id.
	ProcessVideo(ctx context.Context, url string) (string, error)
	VideoStatus(ctx context.Context, jobID string) (StatusReport, error)
	ListVideos(ctx context.Context) ([]model.Video, error)
	// UpdateVideoTitle returns the title as stored by the backend.
	UpdateVideoTitle(ctx context.Context, jobID, title string) (string, error)
	DeleteVideo(ctx context.Context, jobID string) error
	// Chat sends one user message about a completed job and returns the reply text.
	Chat(ctx context.Context, jobID, message string) (string, error)
	Health(ctx context.Context) bool
}
