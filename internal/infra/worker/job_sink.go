package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/logging"
)

// Notifier announces finished jobs.
type Notifier interface {
	NotifyTerminal(ctx context.Context, job model.Job) (bool, error)
}

// JobSink runs the side effects of a job reaching a terminal state on the
// pool: history is written, the tracking record is dropped and a
// notification goes out. Every dependency is optional.
type JobSink struct {
	pool     *Pool
	history  repository.VideoJobRepository
	tracked  repository.TrackedJobStore
	notifier Notifier
	timeout  time.Duration
	log      *zerolog.Logger
}

func NewJobSink(pool *Pool, history repository.VideoJobRepository, tracked repository.TrackedJobStore, notifier Notifier, logger *zerolog.Logger) *JobSink {
	return &JobSink{
		pool:     pool,
		history:  history,
		tracked:  tracked,
		notifier: notifier,
		timeout:  15 * time.Second,
		log:      logging.Component(logger, "job_sink"),
	}
}

// Finished queues the side effects for job. It never blocks; a full queue
// drops the work and logs it.
func (s *JobSink) Finished(job model.Job) {
	if !job.State.IsTerminal() {
		return
	}
	err := s.pool.Submit(func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(logging.WithJobID(ctx, job.ID), s.timeout)
		defer cancel()
		return s.handle(ctx, job)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("job_id", job.ID).Msg("dropped job side effects")
	}
}

func (s *JobSink) handle(ctx context.Context, job model.Job) error {
	log := logging.With(ctx, s.log)
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.history != nil {
		if err := s.history.Save(ctx, nil, &job); err != nil {
			log.Error().Err(err).Msg("save job history")
			keep(err)
		}
	}
	if s.tracked != nil {
		if err := s.tracked.Untrack(ctx, job.ID); err != nil {
			log.Warn().Err(err).Msg("untrack job")
			keep(err)
		}
	}
	if s.notifier != nil {
		if _, err := s.notifier.NotifyTerminal(ctx, job); err != nil {
			log.Warn().Err(err).Msg("notify job")
			keep(err)
		}
	}
	return firstErr
}
