// File: internal/usecase/job_client.go
package usecase

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
	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultChatPollInterval = 3 * time.Second
	DefaultJobTimeout       = 5 * time.Minute
	DefaultRetain           = 10 * time.Minute
)

var ErrClientClosed = errors.New("job client closed")

type JobClientConfig struct {
	// PollInterval is the pause between the end of one status poll and the
	// start of the next for submitted jobs.
	PollInterval time.Duration
	// ChatPollInterval is used for jobs picked up by Attach.
	ChatPollInterval time.Duration
	// Timeout is measured from the job's SubmittedAt.
	Timeout time.Duration
	// Retain is how long a terminal job stays in memory before it is dropped.
	// Negative keeps terminal jobs until Forget is called.
	Retain time.Duration
}

func (c JobClientConfig) withDefaults() JobClientConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ChatPollInterval <= 0 {
		c.ChatPollInterval = DefaultChatPollInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultJobTimeout
	}
	if c.Retain == 0 {
		c.Retain = DefaultRetain
	}
	return c
}

// JobHandlers receives the notifications of one job. Nil fields are skipped.
// Exactly one of OnComplete, OnFailed and OnTimeout fires per job, unless the
// job is cancelled first, in which case none does.
type JobHandlers struct {
	OnProgress func(model.JobStatusUpdate)
	OnComplete func(model.Job)
	OnFailed   func(model.Job, error)
	OnTimeout  func(model.Job, error)
	OnError    func(error)
}

type SubmitOption func(*submitOptions)

type submitOptions struct {
	retry RetryPolicy
}

// WithRetry retries the create request on transport and 5xx failures.
func WithRetry(p RetryPolicy) SubmitOption {
	return func(o *submitOptions) { o.retry = p }
}

// JobClient submits jobs to the video backend, tracks each one with its own
// poll loop and sends chat turns about completed jobs.
type JobClient struct {
	backend adapter.VideoBackend
	cfg     JobClientConfig
	log     *zerolog.Logger

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu   sync.RWMutex
	runs map[string]*jobRun
}

func NewJobClient(backend adapter.VideoBackend, cfg JobClientConfig, logger *zerolog.Logger) *JobClient {
	ctx, stop := context.WithCancel(context.Background())
	return &JobClient{
		backend: backend,
		cfg:     cfg.withDefaults(),
		log:     logging.Component(logger, "job_client"),
		ctx:     ctx,
		stop:    stop,
		runs:    make(map[string]*jobRun),
	}
}

func (c *JobClient) Config() JobClientConfig { return c.cfg }

// Submit creates a remote job for payload and starts polling it.
func (c *JobClient) Submit(ctx context.Context, payload string, opts ...SubmitOption) (*model.Job, error) {
	job, _, err := c.submit(ctx, payload, nil, opts)
	return job, err
}

// SubmitAndSubscribe is Submit with handlers registered before the first poll,
// so no notification can be missed.
func (c *JobClient) SubmitAndSubscribe(ctx context.Context, payload string, h JobHandlers, opts ...SubmitOption) (*model.Job, *Subscription, error) {
	return c.submit(ctx, payload, &h, opts)
}

func (c *JobClient) submit(ctx context.Context, payload string, h *JobHandlers, opts []SubmitOption) (*model.Job, *Subscription, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		metrics.IncJobSubmitted("invalid")
		return nil, nil, fmt.Errorf("%w: payload must not be empty", domain.ErrInvalidInput)
	}
	if c.ctx.Err() != nil {
		return nil, nil, ErrClientClosed
	}
	var o submitOptions
	for _, opt := range opts {
		opt(&o)
	}

	log := logging.With(ctx, c.log)
	submittedAt := time.Now()
	var id string
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		id, err = c.backend.ProcessVideo(ctx, payload)
		if err == nil && strings.TrimSpace(id) == "" {
			err = &domain.RemoteError{Kind: domain.ErrBackendRejected, Status: 200, Cause: "backend returned an empty job id"}
		}
		return err
	})
	if err != nil {
		metrics.IncJobSubmitted("rejected")
		log.Warn().Err(err).Msg("job submission failed")
		return nil, nil, domain.Remote(domain.ErrSubmission, err)
	}
	metrics.IncJobSubmitted("accepted")

	job := model.NewJob(id, payload, submittedAt)
	job.Start()
	run, sub, fresh := c.track(job, c.cfg.PollInterval, h)
	if fresh {
		c.startLoop(run)
		log.Info().Str("job_id", id).Msg("job submitted")
	} else {
		log.Info().Str("job_id", id).Msg("job already tracked; joined existing poll loop")
	}
	snap := run.snapshot()
	return &snap, sub, nil
}

// Attach starts tracking a job that was created elsewhere. One status request
// decides its initial state: completed and failed jobs are returned terminal,
// processing jobs are polled at the chat interval.
func (c *JobClient) Attach(ctx context.Context, jobID string) (*model.Job, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, fmt.Errorf("%w: job id must not be empty", domain.ErrInvalidInput)
	}
	if c.ctx.Err() != nil {
		return nil, ErrClientClosed
	}
	if run := c.lookup(jobID); run != nil {
		snap := run.snapshot()
		if snap.State != model.JobCancelled && snap.State != model.JobTimedOut {
			return &snap, nil
		}
	}

	upd, err := c.poll(ctx, jobID, 0)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
		}
		return nil, err
	}

	job := model.NewJob(jobID, "", time.Now())
	job.Start()
	job.Polls = 1
	switch upd.Status {
	case model.RemoteCompleted:
		job.Complete(resultOf(upd))
	case model.RemoteFailed:
		job.Fail(domain.ErrJobFailed.Error())
	}

	run, _, fresh := c.track(job, c.cfg.ChatPollInterval, nil)
	switch {
	case fresh && job.State.IsTerminal():
		c.release(run)
	case fresh:
		c.startLoop(run)
	}
	logging.With(ctx, c.log).Info().Str("job_id", jobID).Str("state", string(job.State)).Msg("job attached")
	snap := run.snapshot()
	return &snap, nil
}

// PollOnce performs a single status request for job. It never changes the
// tracked job; the poll loop owns state transitions.
func (c *JobClient) PollOnce(ctx context.Context, job *model.Job) (model.JobStatusUpdate, error) {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return model.JobStatusUpdate{}, fmt.Errorf("%w: job id must not be empty", domain.ErrInvalidInput)
	}
	run := c.lookup(job.ID)
	if run == nil {
		if job.State.IsTerminal() {
			return model.JobStatusUpdate{}, fmt.Errorf("%w: %s is %s", domain.ErrJobTerminal, job.ID, job.State)
		}
		return c.poll(ctx, job.ID, 0)
	}

	run.pollMu.Lock()
	defer run.pollMu.Unlock()
	if snap := run.snapshot(); snap.State.IsTerminal() {
		return model.JobStatusUpdate{}, fmt.Errorf("%w: %s is %s", domain.ErrJobTerminal, job.ID, snap.State)
	}
	return c.poll(ctx, job.ID, 0)
}

func (c *JobClient) poll(ctx context.Context, jobID string, attempt int) (model.JobStatusUpdate, error) {
	rep, err := c.backend.VideoStatus(ctx, jobID)
	if err != nil {
		metrics.IncJobPoll("error")
		return model.JobStatusUpdate{}, domain.Remote(domain.ErrPoll, err)
	}
	switch {
	case rep.Status == model.RemoteNotFound:
		metrics.IncJobPoll("not_found")
		return model.JobStatusUpdate{}, &domain.RemoteError{
			Kind: domain.ErrPoll, Status: 200, Cause: "job id unknown to backend", Err: domain.ErrNotFound,
		}
	case !rep.Status.Valid():
		metrics.IncJobPoll("error")
		return model.JobStatusUpdate{}, &domain.RemoteError{
			Kind: domain.ErrPoll, Status: 200, Cause: fmt.Sprintf("unexpected status %q", rep.Status),
		}
	}
	metrics.IncJobPoll(string(rep.Status))

	upd := model.JobStatusUpdate{
		JobID:      jobID,
		Status:     rep.Status,
		Attempt:    attempt,
		ObservedAt: time.Now(),
	}
	if rep.Title != "" || rep.Summary != "" || rep.Status == model.RemoteCompleted {
		upd.Result = &model.JobResult{
			VideoID:       firstNonEmpty(rep.VideoID, jobID),
			Title:         rep.Title,
			Summary:       rep.Summary,
			Folder:        rep.Folder,
			AutoGenerated: rep.AutoGenerated,
		}
	}
	return upd, nil
}

// Subscribe registers handlers for a tracked job. Subscribing to a job that is
// already terminal delivers its terminal notification immediately.
func (c *JobClient) Subscribe(job *model.Job, h JobHandlers) (*Subscription, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: job must not be nil", domain.ErrInvalidInput)
	}
	run := c.lookup(job.ID)
	if run == nil {
		return nil, fmt.Errorf("%w: job %s is not tracked", domain.ErrNotFound, job.ID)
	}
	return run.subscribe(h), nil
}

// Cancel stops polling jobID and marks it Cancelled. It is a no-op for
// terminal jobs.
func (c *JobClient) Cancel(jobID string) error {
	run := c.lookup(jobID)
	if run == nil {
		return fmt.Errorf("%w: job %s is not tracked", domain.ErrNotFound, jobID)
	}
	run.cancel()
	return nil
}

// SendChatTurn appends message as a user turn, asks the backend about the
// session's job and appends the reply as an assistant turn. On failure the
// user turn stays and no assistant turn is added.
func (c *JobClient) SendChatTurn(ctx context.Context, session *model.ChatSession, message string) (*model.ChatSession, error) {
	if session == nil {
		return nil, fmt.Errorf("%w: session must not be nil", domain.ErrInvalidInput)
	}
	message = strings.TrimSpace(message)
	if message == "" {
		metrics.IncChatTurn("invalid")
		return session, fmt.Errorf("%w: message must not be empty", domain.ErrInvalidInput)
	}
	job, ok := c.Job(session.JobID)
	if !ok || job.State != model.JobCompleted {
		state := "untracked"
		if ok {
			state = string(job.State)
		}
		metrics.IncChatTurn("not_ready")
		return session, fmt.Errorf("%w: job %s is %s", domain.ErrNotReady, session.JobID, state)
	}

	log := logging.With(logging.WithSessID(ctx, session.ID), c.log)
	session.AddTurn(model.RoleUser, message)
	reply, err := c.backend.Chat(ctx, session.JobID, message)
	if err != nil {
		metrics.IncChatTurn("failed")
		log.Warn().Err(err).Str("job_id", session.JobID).Msg("chat request failed")
		return session, domain.Remote(domain.ErrChatRequest, err)
	}
	session.AddTurn(model.RoleAssistant, reply)
	metrics.IncChatTurn("answered")
	log.Debug().Str("job_id", session.JobID).Int("turns", len(session.Turns)).Msg("chat turn answered")
	return session, nil
}

// Job returns a snapshot of a tracked job.
func (c *JobClient) Job(id string) (model.Job, bool) {
	run := c.lookup(id)
	if run == nil {
		return model.Job{}, false
	}
	return run.snapshot(), true
}

// Jobs returns snapshots of every tracked job.
func (c *JobClient) Jobs() []model.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Job, 0, len(c.runs))
	for _, r := range c.runs {
		out = append(out, r.snapshot())
	}
	return out
}

// Forget drops a terminal job from the client. Non-terminal jobs are kept.
func (c *JobClient) Forget(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.runs[id]
	if !ok {
		return false
	}
	if snap := r.snapshot(); !snap.State.IsTerminal() {
		return false
	}
	delete(c.runs, id)
	return true
}

// Close cancels every running poll loop and waits for them to exit.
func (c *JobClient) Close() {
	c.stop()
	c.wg.Wait()
}

func (c *JobClient) lookup(id string) *jobRun {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runs[id]
}

// track registers job unless a live run with the same id exists. The backend
// derives ids from the video, so resubmitting a video joins its running loop.
func (c *JobClient) track(job *model.Job, interval time.Duration, h *JobHandlers) (*jobRun, *Subscription, bool) {
	c.mu.Lock()
	if old, ok := c.runs[job.ID]; ok {
		if snap := old.snapshot(); !snap.State.IsTerminal() {
			c.mu.Unlock()
			var sub *Subscription
			if h != nil {
				sub = old.subscribe(*h)
			}
			return old, sub, false
		}
	}
	run := newJobRun(c, job, interval, job.Deadline(c.cfg.Timeout))
	var sub *Subscription
	if h != nil {
		sub = run.subscribe(*h)
	}
	c.runs[job.ID] = run
	c.mu.Unlock()
	return run, sub, true
}

// release drops r once the retention period has passed. A newer run tracked
// under the same id is left alone.
func (c *JobClient) release(r *jobRun) {
	if c.cfg.Retain < 0 {
		return
	}
	time.AfterFunc(c.cfg.Retain, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.runs[r.id] == r {
			delete(c.runs, r.id)
		}
	})
}

func (c *JobClient) startLoop(r *jobRun) {
	c.wg.Add(1)
	go r.loop(c.ctx)
}

func resultOf(upd model.JobStatusUpdate) *model.JobResult {
	if upd.Result != nil {
		return upd.Result
	}
	return &model.JobResult{VideoID: upd.JobID}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Subscription is one set of handlers attached to a tracked job.
type Subscription struct {
	id      string
	run     *jobRun
	h       JobHandlers
	retired bool // guarded by run.mu
}

func (s *Subscription) ID() string    { return s.id }
func (s *Subscription) JobID() string { return s.run.id }

// Cancel stops polling and moves the job to Cancelled if it is not terminal.
func (s *Subscription) Cancel() { s.run.cancel() }

// Unsubscribe detaches these handlers and leaves the job running.
func (s *Subscription) Unsubscribe() {
	s.run.mu.Lock()
	s.retired = true
	s.run.mu.Unlock()
}

// Done is closed once the job's poll loop has exited.
func (s *Subscription) Done() <-chan struct{} { return s.run.done }

// Job returns a snapshot of the subscribed job.
func (s *Subscription) Job() model.Job { return s.run.snapshot() }
