package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/usecase"
)

var ErrChatUnavailable = errors.New("chat is not configured")

type heldLock struct {
	key   string
	token string
}

// DashboardFacade composes the usecases into the operations the gateway and
// the CLI expose. Only Jobs and Videos are required; every other field may be
// left nil and the matching side effect is skipped.
type DashboardFacade struct {
	Jobs    *usecase.JobClient
	Videos  usecase.VideoUseCase
	Chat    usecase.ChatUseCase
	Stats   usecase.StatsUseCase
	Locker  SubmitLocker
	Tracked repository.TrackedJobStore
	History repository.VideoJobRepository
	Sink    TerminalSink
	Probe   LivenessProbe

	LockTTL time.Duration
	Retry   usecase.RetryPolicy

	log  *zerolog.Logger
	mu   sync.Mutex
	held map[string]heldLock // job id -> submit lock
}

func NewDashboardFacade(jobs *usecase.JobClient, videos usecase.VideoUseCase, logger *zerolog.Logger) *DashboardFacade {
	return &DashboardFacade{
		Jobs:    jobs,
		Videos:  videos,
		LockTTL: jobs.Config().Timeout,
		log:     logging.Component(logger, "dashboard"),
		held:    make(map[string]heldLock),
	}
}

// SubmitVideo validates a YouTube url, takes the submit lock for its video id,
// submits it and subscribes the terminal side effects. The lock is held until
// the job finishes or is cancelled.
func (f *DashboardFacade) SubmitVideo(ctx context.Context, url string) (model.Job, error) {
	url = strings.TrimSpace(url)
	videoID, ok := model.ExtractVideoID(url)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: %q is not a YouTube video url", domain.ErrInvalidInput, url)
	}
	if j, ok := f.Jobs.Job(videoID); ok && !j.State.IsTerminal() {
		return model.Job{}, fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, videoID)
	}
	log := logging.With(ctx, f.log)

	lock, err := f.lock(ctx, videoID)
	if err != nil {
		return model.Job{}, err
	}

	job, _, err := f.Jobs.SubmitAndSubscribe(ctx, url, f.handlers(lock), usecase.WithRetry(f.Retry))
	if err != nil {
		f.unlock(lock)
		return model.Job{}, err
	}

	// A job that already finished has released its lock through finish.
	f.mu.Lock()
	if cur, ok := f.Jobs.Job(job.ID); ok && lock.token != "" && !cur.State.IsTerminal() {
		f.held[job.ID] = lock
	}
	f.mu.Unlock()

	if f.Tracked != nil {
		rec := repository.TrackedJob{JobID: job.ID, Payload: job.Payload, SubmittedAt: job.SubmittedAt}
		if err := f.Tracked.Track(ctx, rec, f.Jobs.Config().Timeout); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID).Msg("track job")
		}
	}
	return *job, nil
}

// Resume attaches to every job a previous process left tracked. Jobs the
// backend no longer knows are dropped from the store.
func (f *DashboardFacade) Resume(ctx context.Context) (int, error) {
	if f.Tracked == nil {
		return 0, nil
	}
	recs, err := f.Tracked.List(ctx)
	if err != nil {
		return 0, err
	}
	log := logging.With(ctx, f.log)
	n := 0
	for _, rec := range recs {
		job, err := f.Jobs.Attach(ctx, rec.JobID)
		if errors.Is(err, domain.ErrNotFound) {
			if err := f.Tracked.Untrack(ctx, rec.JobID); err != nil {
				log.Warn().Err(err).Str("job_id", rec.JobID).Msg("untrack unknown job")
			}
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("job_id", rec.JobID).Msg("resume job")
			continue
		}
		if _, err := f.Jobs.Subscribe(job, f.handlers(heldLock{})); err != nil {
			log.Warn().Err(err).Str("job_id", rec.JobID).Msg("subscribe resumed job")
			continue
		}
		n++
	}
	log.Info().Int("resumed", n).Int("tracked", len(recs)).Msg("tracked jobs resumed")
	return n, nil
}

func (f *DashboardFacade) handlers(lock heldLock) usecase.JobHandlers {
	return usecase.JobHandlers{
		OnComplete: func(j model.Job) { f.finish(j, lock) },
		OnFailed:   func(j model.Job, _ error) { f.finish(j, lock) },
		OnTimeout:  func(j model.Job, _ error) { f.finish(j, lock) },
	}
}

func (f *DashboardFacade) finish(job model.Job, lock heldLock) {
	f.mu.Lock()
	delete(f.held, job.ID)
	f.mu.Unlock()
	f.unlock(lock)
	if f.Sink != nil {
		f.Sink.Finished(job)
	}
}

// JobSnapshot returns the tracked job, or its history record once the
// process forgot it.
func (f *DashboardFacade) JobSnapshot(ctx context.Context, id string) (model.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Job{}, fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	if j, ok := f.Jobs.Job(id); ok {
		return j, nil
	}
	if f.History != nil {
		j, err := f.History.FindByID(ctx, nil, id)
		if err == nil {
			return *j, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return model.Job{}, err
		}
	}
	return model.Job{}, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
}

// AttachJob returns the tracked job, asking the backend about jobs this
// process has not seen. Processing jobs stay tracked afterwards.
func (f *DashboardFacade) AttachJob(ctx context.Context, id string) (model.Job, error) {
	id = strings.TrimSpace(id)
	if j, ok := f.Jobs.Job(id); ok {
		return j, nil
	}
	job, err := f.Jobs.Attach(ctx, id)
	if err != nil {
		return model.Job{}, err
	}
	return *job, nil
}

// CancelJob stops polling a job. Cancelling a terminal job changes nothing.
func (f *DashboardFacade) CancelJob(ctx context.Context, id string) (model.Job, error) {
	before, ok := f.Jobs.Job(id)
	if !ok {
		return model.Job{}, fmt.Errorf("%w: job %s is not tracked", domain.ErrNotFound, id)
	}
	if before.State.IsTerminal() {
		return before, nil
	}
	if err := f.Jobs.Cancel(id); err != nil {
		return model.Job{}, err
	}
	after, _ := f.Jobs.Job(id)
	if after.State != model.JobCancelled {
		return after, nil
	}

	f.mu.Lock()
	lock := f.held[id]
	delete(f.held, id)
	f.mu.Unlock()
	f.unlock(lock)
	if f.Sink != nil {
		f.Sink.Finished(after)
	}
	logging.With(ctx, f.log).Info().Str("job_id", id).Msg("job cancelled")
	return after, nil
}

// OpenChat starts a session on a completed job, attaching to jobs this
// process did not submit.
func (f *DashboardFacade) OpenChat(ctx context.Context, jobID string) (*model.ChatSession, error) {
	if f.Chat == nil {
		return nil, ErrChatUnavailable
	}
	if err := f.ensureTracked(ctx, jobID); err != nil {
		return nil, err
	}
	return f.Chat.StartChat(ctx, jobID)
}

// SendChat runs one turn of a session. The user turn is kept even when the
// backend fails to answer.
func (f *DashboardFacade) SendChat(ctx context.Context, sessionID, message string) (*model.ChatSession, error) {
	if f.Chat == nil {
		return nil, ErrChatUnavailable
	}
	s, err := f.Chat.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := f.ensureTracked(ctx, s.JobID); err != nil {
		return nil, err
	}
	return f.Chat.SendMessage(ctx, sessionID, message)
}

func (f *DashboardFacade) GetChat(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	if f.Chat == nil {
		return nil, ErrChatUnavailable
	}
	return f.Chat.GetSession(ctx, sessionID)
}

// ListChats returns the sessions opened on a job, oldest first.
func (f *DashboardFacade) ListChats(ctx context.Context, jobID string) ([]*model.ChatSession, error) {
	if f.Chat == nil {
		return nil, ErrChatUnavailable
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	return f.Chat.ListSessions(ctx, jobID)
}

// EndChat deletes a session and its turns. Ending an unknown session is not an error.
func (f *DashboardFacade) EndChat(ctx context.Context, sessionID string) error {
	if f.Chat == nil {
		return ErrChatUnavailable
	}
	return f.Chat.EndChat(ctx, sessionID)
}

func (f *DashboardFacade) ensureTracked(ctx context.Context, jobID string) error {
	if _, ok := f.Jobs.Job(strings.TrimSpace(jobID)); ok {
		return nil
	}
	_, err := f.Jobs.Attach(ctx, jobID)
	return err
}

func (f *DashboardFacade) Library(ctx context.Context) ([]model.Video, error) {
	return f.Videos.List(ctx)
}

func (f *DashboardFacade) RenameVideo(ctx context.Context, id, title string) (string, error) {
	return f.Videos.Rename(ctx, id, title)
}

// DeleteVideo removes a video from the backend library and stops tracking it.
func (f *DashboardFacade) DeleteVideo(ctx context.Context, id string) error {
	if err := f.Videos.Delete(ctx, id); err != nil {
		return err
	}
	f.mu.Lock()
	lock := f.held[id]
	delete(f.held, id)
	f.mu.Unlock()
	f.unlock(lock)
	if f.Tracked != nil {
		if err := f.Tracked.Untrack(ctx, id); err != nil {
			logging.With(ctx, f.log).Warn().Err(err).Str("job_id", id).Msg("untrack deleted video")
		}
	}
	return nil
}

// BackendHealthy prefers the prober's last answer over a live request.
func (f *DashboardFacade) BackendHealthy(ctx context.Context) bool {
	if f.Probe != nil {
		return f.Probe.Up()
	}
	return f.Videos.Health(ctx)
}

func (f *DashboardFacade) JobStats(ctx context.Context, recent int) (usecase.JobStats, error) {
	if f.Stats == nil {
		return usecase.JobStats{}, errors.New("stats are not configured")
	}
	return f.Stats.Totals(ctx, recent)
}

// Close stops every poll loop and releases the submit locks still held.
func (f *DashboardFacade) Close() {
	f.Jobs.Close()
	f.mu.Lock()
	held := f.held
	f.held = make(map[string]heldLock)
	f.mu.Unlock()
	for _, l := range held {
		f.unlock(l)
	}
}

func (f *DashboardFacade) lock(ctx context.Context, videoID string) (heldLock, error) {
	if f.Locker == nil {
		return heldLock{}, nil
	}
	token, err := f.Locker.TryLock(ctx, videoID, f.LockTTL)
	switch {
	case errors.Is(err, domain.ErrAlreadyInFlight):
		return heldLock{}, fmt.Errorf("%w: %s", domain.ErrAlreadyInFlight, videoID)
	case err != nil:
		// Redis trouble must not block submissions.
		logging.With(ctx, f.log).Warn().Err(err).Str("video_id", videoID).Msg("submit lock unavailable")
		return heldLock{}, nil
	}
	return heldLock{key: videoID, token: token}, nil
}

func (f *DashboardFacade) unlock(l heldLock) {
	if f.Locker == nil || l.token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Locker.Unlock(ctx, l.key, l.token); err != nil {
		f.log.Warn().Err(err).Str("video_id", l.key).Msg("release submit lock")
	}
}
