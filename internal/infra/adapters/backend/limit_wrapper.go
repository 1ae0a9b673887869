package backend

import (
	"context"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.VideoBackend = (*limitedBackend)(nil)

// limitedBackend caps the number of concurrent requests sent to the backend.
// Waiting for a slot honours ctx.
type limitedBackend struct {
	inner adapter.VideoBackend
	sem   chan struct{}
}

func NewLimitedBackend(inner adapter.VideoBackend, maxConcurrent int) adapter.VideoBackend {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedBackend{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedBackend) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedBackend) release() { <-l.sem }

func (l *limitedBackend) ProcessVideo(ctx context.Context, url string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.ProcessVideo(ctx, url)
}

func (l *limitedBackend) VideoStatus(ctx context.Context, jobID string) (adapter.StatusReport, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.StatusReport{}, err
	}
	defer l.release()
	return l.inner.VideoStatus(ctx, jobID)
}

func (l *limitedBackend) ListVideos(ctx context.Context) ([]model.Video, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()
	return l.inner.ListVideos(ctx)
}

func (l *limitedBackend) UpdateVideoTitle(ctx context.Context, jobID, title string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.UpdateVideoTitle(ctx, jobID, title)
}

func (l *limitedBackend) DeleteVideo(ctx context.Context, jobID string) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()
	return l.inner.DeleteVideo(ctx, jobID)
}

func (l *limitedBackend) Chat(ctx context.Context, jobID, message string) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer l.release()
	return l.inner.Chat(ctx, jobID, message)
}

// Health bypasses the limit so probes still answer under load.
func (l *limitedBackend) Health(ctx context.Context) bool {
	return l.inner.Health(ctx)
}
