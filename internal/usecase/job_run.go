package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/metrics"
)

var errRunStopped = errors.New("poll loop stopped")

// jobRun owns one tracked job: its state, its subscribers and its poll loop.
type jobRun struct {
	client   *JobClient
	id       string
	interval time.Duration
	deadline time.Time
	log      *zerolog.Logger

	pollMu sync.Mutex // one status request in flight per job

	mu      sync.Mutex
	job     *model.Job
	err     error // cause reported to OnFailed/OnTimeout
	subs    []*Subscription
	cancelC chan struct{}
	done    chan struct{}
}

func newJobRun(c *JobClient, job *model.Job, interval time.Duration, deadline time.Time) *jobRun {
	l := c.log.With().Str("job_id", job.ID).Logger()
	r := &jobRun{
		client:   c,
		id:       job.ID,
		interval: interval,
		deadline: deadline,
		log:      &l,
		job:      job,
		cancelC:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	if job.State == model.JobFailed {
		r.err = fmt.Errorf("job %s: %w", job.ID, domain.ErrJobFailed)
	}
	if job.State.IsTerminal() {
		close(r.done)
	}
	return r
}

func (r *jobRun) snapshot() model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Snapshot()
}

func (r *jobRun) loop(ctx context.Context) {
	defer r.client.wg.Done()
	defer r.client.release(r)
	defer close(r.done)
	metrics.PollLoopStarted()
	defer metrics.PollLoopFinished()

	deadline := time.NewTimer(time.Until(r.deadline))
	defer deadline.Stop()
	next := time.NewTimer(r.interval)
	defer next.Stop()

	for {
		select {
		case <-r.cancelC:
			return
		case <-ctx.Done():
			r.cancel()
			return
		case <-deadline.C:
			r.expire()
			return
		case <-next.C:
		}
		if !time.Now().Before(r.deadline) {
			r.expire()
			return
		}

		upd, err := r.pollOnce(ctx)
		if ctx.Err() != nil {
			r.cancel()
			return
		}
		if !time.Now().Before(r.deadline) {
			r.expire()
			return
		}

		live := false
		switch {
		case err != nil:
			live = r.transient(err)
		case upd.Status == model.RemoteCompleted:
			r.complete(upd)
		case upd.Status == model.RemoteFailed:
			r.fail()
		default:
			live = r.progress(upd)
		}
		if !live {
			return
		}
		// the interval counts from the end of the previous response
		next.Reset(r.interval)
	}
}

func (r *jobRun) pollOnce(ctx context.Context) (model.JobStatusUpdate, error) {
	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	r.mu.Lock()
	if r.job.State.IsTerminal() {
		r.mu.Unlock()
		return model.JobStatusUpdate{}, errRunStopped
	}
	r.job.Polls++
	attempt := r.job.Polls
	r.mu.Unlock()

	pctx, cancel := context.WithDeadline(ctx, r.deadline)
	defer cancel()
	return r.client.poll(pctx, r.id, attempt)
}

func (r *jobRun) progress(upd model.JobStatusUpdate) bool {
	r.log.Debug().Int("attempt", upd.Attempt).Str("status", string(upd.Status)).Msg("job progress")
	return r.deliver("progress", func(h JobHandlers) {
		if h.OnProgress != nil {
			h.OnProgress(upd)
		}
	})
}

func (r *jobRun) transient(err error) bool {
	r.log.Warn().Err(err).Msg("status poll failed; will retry")
	return r.deliver("error", func(h JobHandlers) {
		if h.OnError != nil {
			h.OnError(err)
		}
	})
}

// deliver hands a non-terminal notification to each subscription that is
// still attached when its turn comes, so a Cancel or Unsubscribe made by an
// earlier handler silences the rest. It reports whether the job is still live.
func (r *jobRun) deliver(callback string, fn func(JobHandlers)) bool {
	r.mu.Lock()
	if r.job.State.IsTerminal() {
		r.mu.Unlock()
		return false
	}
	subs := append([]*Subscription(nil), r.subs...)
	r.mu.Unlock()

	for _, s := range subs {
		r.mu.Lock()
		attached := !s.retired && !r.job.State.IsTerminal()
		r.mu.Unlock()
		if !attached {
			continue
		}
		r.safe(callback, func() { fn(s.h) })
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.job.State.IsTerminal()
}

func (r *jobRun) complete(upd model.JobStatusUpdate) {
	r.finish(func(j *model.Job) bool { return j.Complete(resultOf(upd)) }, nil)
}

func (r *jobRun) fail() {
	r.finish(func(j *model.Job) bool { return j.Fail(domain.ErrJobFailed.Error()) },
		fmt.Errorf("job %s: %w", r.id, domain.ErrJobFailed))
}

func (r *jobRun) expire() {
	timeout := r.client.cfg.Timeout
	cause := fmt.Sprintf("%s after %s", domain.ErrJobTimedOut, timeout)
	r.finish(func(j *model.Job) bool { return j.TimeOut(cause) },
		fmt.Errorf("job %s: %w after %s", r.id, domain.ErrJobTimedOut, timeout))
}

// finish applies a terminal transition and notifies every live subscriber once.
func (r *jobRun) finish(apply func(*model.Job) bool, cause error) {
	r.mu.Lock()
	if !apply(r.job) {
		r.mu.Unlock()
		return
	}
	r.err = cause
	hs := r.retire()
	snap := r.job.Snapshot()
	r.mu.Unlock()

	metrics.IncJobFinished(string(snap.State))
	ev := r.log.Info()
	if cause != nil {
		ev = r.log.Warn().Err(cause)
	}
	ev.Str("state", string(snap.State)).Int("polls", snap.Polls).Msg("job finished")

	for _, h := range hs {
		r.deliverTerminal(h, snap, cause)
	}
}

// cancel moves a non-terminal job to Cancelled and stops its loop. Nothing is
// delivered to subscribers, and a poll still in flight is discarded.
func (r *jobRun) cancel() bool {
	r.mu.Lock()
	if !r.job.Cancel() {
		r.mu.Unlock()
		return false
	}
	r.retire()
	close(r.cancelC)
	r.mu.Unlock()

	metrics.IncJobFinished(string(model.JobCancelled))
	r.log.Info().Msg("job cancelled")
	return true
}

func (r *jobRun) subscribe(h JobHandlers) *Subscription {
	sub := &Subscription{id: uuid.NewString(), run: r, h: h}
	r.mu.Lock()
	if !r.job.State.IsTerminal() {
		r.subs = append(r.subs, sub)
		r.mu.Unlock()
		return sub
	}
	sub.retired = true
	snap := r.job.Snapshot()
	cause := r.err
	r.mu.Unlock()

	r.deliverTerminal(h, snap, cause)
	return sub
}

func (r *jobRun) deliverTerminal(h JobHandlers, snap model.Job, cause error) {
	switch snap.State {
	case model.JobCompleted:
		if h.OnComplete != nil {
			r.safe("complete", func() { h.OnComplete(snap) })
		}
	case model.JobFailed:
		if h.OnFailed != nil {
			r.safe("failed", func() { h.OnFailed(snap, cause) })
		}
	case model.JobTimedOut:
		if h.OnTimeout != nil {
			r.safe("timeout", func() { h.OnTimeout(snap, cause) })
		}
	}
}

// retire detaches every subscription and returns the handlers that were live. Caller holds r.mu.
func (r *jobRun) retire() []JobHandlers {
	out := make([]JobHandlers, 0, len(r.subs))
	for _, s := range r.subs {
		if !s.retired {
			out = append(out, s.h)
		}
		s.retired = true
	}
	r.subs = nil
	return out
}

func (r *jobRun) safe(callback string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Interface("panic", p).Str("callback", callback).Msg("job handler panicked")
		}
	}()
	fn()
}
