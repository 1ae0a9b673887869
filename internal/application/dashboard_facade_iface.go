package application

import (
	"context"
	"time"

	"vidiwise/internal/domain/model"
)

// Small interfaces that keep the facade away from concrete infra types, so
// tests can hand in light fakes.

// SubmitLocker guards a video id while its job is being submitted and polled.
type SubmitLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// TerminalSink receives every job this process saw finish.
type TerminalSink interface {
	Finished(job model.Job)
}

// LivenessProbe answers from the last known backend health.
type LivenessProbe interface {
	Up() bool
}
