package usecase

import (
	"context"
	"sync"
	"time"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/adapter"
)

// statusStep is one scripted answer to a status request.
type statusStep struct {
	rep adapter.StatusReport
	err error
}

func processing() statusStep {
	return statusStep{rep: adapter.StatusReport{Status: model.RemoteProcessing}}
}

func completed(summary string) statusStep {
	return statusStep{rep: adapter.StatusReport{Status: model.RemoteCompleted, Title: "Talk", Summary: summary}}
}

func failed() statusStep {
	return statusStep{rep: adapter.StatusReport{Status: model.RemoteFailed}}
}

func transportErr() error {
	return &domain.RemoteError{Kind: domain.ErrBackendUnavailable, Cause: "connection refused"}
}

// scriptedBackend is an in-memory VideoBackend whose answers are scripted by tests.
// The last status step repeats once the script is exhausted.
type scriptedBackend struct {
	mu sync.Mutex

	submitID    string
	submitErrs  []error
	submitCalls int

	statuses    []statusStep
	statusCalls int
	statusDelay time.Duration
	statusStart []time.Time
	inFlight    int
	maxInFlight int

	chatReply string
	chatErr   error
	chatCalls int
	chatArgs  [][2]string

	videos []model.Video
}

var _ adapter.VideoBackend = (*scriptedBackend)(nil)

func newScriptedBackend(steps ...statusStep) *scriptedBackend {
	return &scriptedBackend{submitID: "abc123", statuses: steps}
}

func (b *scriptedBackend) ProcessVideo(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitCalls++
	if len(b.submitErrs) > 0 {
		err := b.submitErrs[0]
		b.submitErrs = b.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return b.submitID, nil
}

func (b *scriptedBackend) VideoStatus(ctx context.Context, jobID string) (adapter.StatusReport, error) {
	b.mu.Lock()
	b.statusCalls++
	b.statusStart = append(b.statusStart, time.Now())
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	var step statusStep
	if len(b.statuses) > 0 {
		step = b.statuses[0]
		if len(b.statuses) > 1 {
			b.statuses = b.statuses[1:]
		}
	} else {
		step = processing()
	}
	delay := b.statusDelay
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.inFlight--
		b.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return adapter.StatusReport{}, &domain.RemoteError{Kind: domain.ErrBackendUnavailable, Err: ctx.Err()}
		}
	}
	if step.err != nil {
		return adapter.StatusReport{}, step.err
	}
	rep := step.rep
	rep.VideoID = jobID
	return rep, nil
}

func (b *scriptedBackend) ListVideos(ctx context.Context) ([]model.Video, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Video(nil), b.videos...), nil
}

func (b *scriptedBackend) UpdateVideoTitle(ctx context.Context, jobID, title string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.videos {
		if b.videos[i].ID == jobID {
			b.videos[i].Title = title
			return title, nil
		}
	}
	return "", &domain.RemoteError{Kind: domain.ErrNotFound, Status: 404, Cause: "Video not found"}
}

func (b *scriptedBackend) DeleteVideo(ctx context.Context, jobID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.videos {
		if b.videos[i].ID == jobID {
			b.videos = append(b.videos[:i], b.videos[i+1:]...)
			return nil
		}
	}
	return &domain.RemoteError{Kind: domain.ErrNotFound, Status: 404, Cause: "Video not found"}
}

func (b *scriptedBackend) Chat(ctx context.Context, jobID, message string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chatCalls++
	b.chatArgs = append(b.chatArgs, [2]string{jobID, message})
	if b.chatErr != nil {
		return "", b.chatErr
	}
	return b.chatReply, nil
}

func (b *scriptedBackend) Health(ctx context.Context) bool { return true }

func (b *scriptedBackend) calls() (submit, status, chat int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submitCalls, b.statusCalls, b.chatCalls
}

// recorder collects notifications in delivery order.
type recorder struct {
	mu       sync.Mutex
	events   []string
	updates  []model.JobStatusUpdate
	errs     []error
	final    model.Job
	finalErr error
	terminal chan struct{}
	once     sync.Once
}

func newRecorder() *recorder { return &recorder{terminal: make(chan struct{})} }

func (r *recorder) handlers() JobHandlers {
	return JobHandlers{
		OnProgress: func(u model.JobStatusUpdate) {
			r.mu.Lock()
			r.events = append(r.events, "progress")
			r.updates = append(r.updates, u)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.events = append(r.events, "error")
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
		OnComplete: func(j model.Job) { r.end("complete", j, nil) },
		OnFailed:   func(j model.Job, err error) { r.end("failed", j, err) },
		OnTimeout:  func(j model.Job, err error) { r.end("timeout", j, err) },
	}
}

func (r *recorder) end(kind string, j model.Job, err error) {
	r.mu.Lock()
	r.events = append(r.events, kind)
	r.final = j
	r.finalErr = err
	r.mu.Unlock()
	r.once.Do(func() { close(r.terminal) })
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e == kind {
			n++
		}
	}
	return n
}
