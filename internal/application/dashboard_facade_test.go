package application_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vidiwise/internal/application"
	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/adapters/backend"
	"vidiwise/internal/infra/backendsim"
	"vidiwise/internal/usecase"
)

// ---- fakes ----

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	unlocked []string
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[string]string{}} }

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", l.err
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrAlreadyInFlight
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		l.unlocked = append(l.unlocked, key)
	}
	return nil
}

func (l *fakeLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

type fakeSink struct {
	jobs chan model.Job
}

func newFakeSink() *fakeSink { return &fakeSink{jobs: make(chan model.Job, 8)} }

func (s *fakeSink) Finished(job model.Job) { s.jobs <- job }

func (s *fakeSink) next(t *testing.T) model.Job {
	t.Helper()
	select {
	case j := <-s.jobs:
		return j
	case <-time.After(3 * time.Second):
		t.Fatal("no finished job")
	}
	return model.Job{}
}

type memTracked struct {
	mu         sync.Mutex
	recs       map[string]repository.TrackedJob
	untrackErr error
}

func newMemTracked() *memTracked { return &memTracked{recs: map[string]repository.TrackedJob{}} }

func (m *memTracked) Track(ctx context.Context, job repository.TrackedJob, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[job.JobID] = job
	return nil
}

func (m *memTracked) Untrack(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.untrackErr != nil {
		return m.untrackErr
	}
	delete(m.recs, jobID)
	return nil
}

func (m *memTracked) List(ctx context.Context) ([]repository.TrackedJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.TrackedJob, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	return out, nil
}

func (m *memTracked) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.recs[id]
	return ok
}

type memHistory struct {
	jobs map[string]*model.Job
}

func (h *memHistory) Save(ctx context.Context, qx any, job *model.Job) error {
	h.jobs[job.ID] = job
	return nil
}

func (h *memHistory) FindByID(ctx context.Context, qx any, id string) (*model.Job, error) {
	if j, ok := h.jobs[id]; ok {
		return j, nil
	}
	return nil, domain.ErrNotFound
}

func (h *memHistory) ListRecent(ctx context.Context, qx any, limit int) ([]*model.Job, error) {
	return nil, nil
}

type memSessions struct {
	mu    sync.Mutex
	byID  map[string]*model.ChatSession
	turns map[string][]model.ChatTurn
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]*model.ChatSession{}, turns: map[string][]model.ChatTurn{}}
}

func (m *memSessions) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Turns = nil
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) SaveTurn(ctx context.Context, qx any, t *model.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[t.SessionID] = append(m.turns[t.SessionID], *t)
	return nil
}

func (m *memSessions) Delete(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	delete(m.turns, id)
	return nil
}

func (m *memSessions) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.Turns = append([]model.ChatTurn(nil), m.turns[id]...)
	return &cp, nil
}

func (m *memSessions) FindAllByJob(ctx context.Context, qx any, jobID string) ([]*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ChatSession
	for id, s := range m.byID {
		if s.JobID == jobID {
			cp := *s
			cp.Turns = append([]model.ChatTurn(nil), m.turns[id]...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSessions) CleanupOldTurns(ctx context.Context, retention time.Duration) (int64, error) {
	return 0, nil
}

// ---- harness ----

type harness struct {
	facade  *application.DashboardFacade
	backend *backend.HTTPBackend
	locker  *fakeLocker
	sink    *fakeSink
	tracked *memTracked
}

func newHarness(t *testing.T, opts backendsim.Options, timeout time.Duration) *harness {
	t.Helper()
	srv := httptest.NewServer(backendsim.New(opts, nil))
	t.Cleanup(srv.Close)
	b, err := backend.NewHTTPBackend(srv.URL, time.Second, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	jobs := usecase.NewJobClient(b, usecase.JobClientConfig{
		PollInterval:     5 * time.Millisecond,
		ChatPollInterval: 5 * time.Millisecond,
		Timeout:          timeout,
	}, nil)

	f := application.NewDashboardFacade(jobs, usecase.NewVideoUseCase(b, jobs, nil), nil)
	h := &harness{facade: f, backend: b, locker: newFakeLocker(), sink: newFakeSink(), tracked: newMemTracked()}
	f.Chat = usecase.NewChatUseCase(jobs, newMemSessions(), nil, nil)
	f.Locker = h.locker
	f.Sink = h.sink
	f.Tracked = h.tracked
	t.Cleanup(f.Close)
	return h
}

const talkURL = "https://www.youtube.com/watch?v=abc123"

func TestSubmitVideoRejectsNonYouTubeURL(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	for _, u := range []string{"", "   ", "https://vimeo.com/123"} {
		if _, err := h.facade.SubmitVideo(context.Background(), u); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SubmitVideo(%q) err = %v", u, err)
		}
	}
}

func TestSubmitVideoRunsToCompletion(t *testing.T) {
	h := newHarness(t, backendsim.Options{ProcessingPolls: 1}, 2*time.Second)

	job, err := h.facade.SubmitVideo(context.Background(), talkURL)
	if err != nil {
		t.Fatalf("SubmitVideo: %v", err)
	}
	if job.ID != "abc123" || job.Payload != talkURL {
		t.Fatalf("job = %+v", job)
	}
	if !h.tracked.has("abc123") {
		t.Error("job was not recorded as tracked")
	}

	done := h.sink.next(t)
	if done.State != model.JobCompleted || done.Result == nil {
		t.Fatalf("finished job = %+v", done)
	}
	if h.locker.isHeld("abc123") {
		t.Error("submit lock still held after completion")
	}
	snap, err := h.facade.JobSnapshot(context.Background(), "abc123")
	if err != nil || snap.State != model.JobCompleted {
		t.Errorf("snapshot = %+v, %v", snap, err)
	}
}

func TestSubmitVideoRefusesDuplicates(t *testing.T) {
	h := newHarness(t, backendsim.Options{ProcessingPolls: 1 << 20}, time.Minute)
	ctx := context.Background()

	if _, err := h.facade.SubmitVideo(ctx, talkURL); err != nil {
		t.Fatal(err)
	}
	if _, err := h.facade.SubmitVideo(ctx, "https://youtu.be/abc123"); !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Errorf("duplicate err = %v", err)
	}
}

func TestSubmitVideoLockOwnedElsewhere(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	if _, err := h.locker.TryLock(context.Background(), "abc123", time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := h.facade.SubmitVideo(context.Background(), talkURL); !errors.Is(err, domain.ErrAlreadyInFlight) {
		t.Errorf("err = %v", err)
	}
}

func TestSubmitVideoWithoutWorkingLock(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	h.locker.err = errors.New("redis down")

	if _, err := h.facade.SubmitVideo(context.Background(), talkURL); err != nil {
		t.Fatalf("SubmitVideo: %v", err)
	}
	if got := h.sink.next(t); got.State != model.JobCompleted {
		t.Errorf("state = %s", got.State)
	}
}

func TestCancelJobReleasesLock(t *testing.T) {
	h := newHarness(t, backendsim.Options{ProcessingPolls: 1 << 20}, time.Minute)
	ctx := context.Background()

	if _, err := h.facade.SubmitVideo(ctx, talkURL); err != nil {
		t.Fatal(err)
	}
	if !h.locker.isHeld("abc123") {
		t.Fatal("lock not taken")
	}
	job, err := h.facade.CancelJob(ctx, "abc123")
	if err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if job.State != model.JobCancelled {
		t.Errorf("state = %s", job.State)
	}
	if h.locker.isHeld("abc123") {
		t.Error("lock still held after cancel")
	}
	if got := h.sink.next(t); got.State != model.JobCancelled {
		t.Errorf("sink got %s", got.State)
	}

	again, err := h.facade.CancelJob(ctx, "abc123")
	if err != nil || again.State != model.JobCancelled {
		t.Errorf("second cancel = %+v, %v", again, err)
	}
	if _, err := h.facade.CancelJob(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown job err = %v", err)
	}
}

func TestJobSnapshotFallsBackToHistory(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	old := model.NewJob("old1", "https://youtu.be/old1", time.Now().Add(-time.Hour))
	old.Start()
	old.Fail("boom")
	h.facade.History = &memHistory{jobs: map[string]*model.Job{"old1": old}}

	got, err := h.facade.JobSnapshot(context.Background(), "old1")
	if err != nil || got.State != model.JobFailed {
		t.Errorf("snapshot = %+v, %v", got, err)
	}
	if _, err := h.facade.JobSnapshot(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := h.facade.JobSnapshot(context.Background(), " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank err = %v", err)
	}
}

func TestChatOnJobSubmittedElsewhere(t *testing.T) {
	h := newHarness(t, backendsim.Options{
		Summarize: func(string) string { return "X" },
		Reply:     func(_, summary, _ string) string { return "It is about " + summary + "." },
	}, 2*time.Second)
	ctx := context.Background()

	id, err := h.backend.ProcessVideo(ctx, talkURL)
	if err != nil {
		t.Fatal(err)
	}
	session, err := h.facade.OpenChat(ctx, id)
	if err != nil {
		t.Fatalf("OpenChat: %v", err)
	}
	session, err = h.facade.SendChat(ctx, session.ID, "What is it about?")
	if err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	last, ok := session.LastTurn()
	if !ok || last.Role != model.RoleAssistant || last.Content != "It is about X." {
		t.Errorf("last turn = %+v", last)
	}

	stored, err := h.facade.GetChat(ctx, session.ID)
	if err != nil || len(stored.Turns) != 2 {
		t.Errorf("stored session = %+v, %v", stored, err)
	}

	chats, err := h.facade.ListChats(ctx, id)
	if err != nil || len(chats) != 1 || chats[0].ID != session.ID {
		t.Errorf("ListChats = %+v, %v", chats, err)
	}
	if _, err := h.facade.ListChats(ctx, " "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank job err = %v", err)
	}
	if err := h.facade.EndChat(ctx, session.ID); err != nil {
		t.Fatalf("EndChat: %v", err)
	}
	if _, err := h.facade.GetChat(ctx, session.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ended session err = %v", err)
	}
}

func TestOpenChatBeforeCompletion(t *testing.T) {
	h := newHarness(t, backendsim.Options{ProcessingPolls: 1 << 20}, time.Minute)
	ctx := context.Background()
	if _, err := h.facade.SubmitVideo(ctx, talkURL); err != nil {
		t.Fatal(err)
	}
	if _, err := h.facade.OpenChat(ctx, "abc123"); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("err = %v", err)
	}
	if _, err := h.facade.OpenChat(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown job err = %v", err)
	}
}

func TestChatUnavailable(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	h.facade.Chat = nil
	if _, err := h.facade.OpenChat(context.Background(), "abc123"); !errors.Is(err, application.ErrChatUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestResumeAttachesTrackedJobs(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	ctx := context.Background()

	id, err := h.backend.ProcessVideo(ctx, talkURL)
	if err != nil {
		t.Fatal(err)
	}
	_ = h.tracked.Track(ctx, repository.TrackedJob{JobID: id, Payload: talkURL, SubmittedAt: time.Now()}, time.Minute)
	_ = h.tracked.Track(ctx, repository.TrackedJob{JobID: "gone", SubmittedAt: time.Now()}, time.Minute)

	n, err := h.facade.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if n != 1 {
		t.Errorf("resumed = %d", n)
	}
	if h.tracked.has("gone") {
		t.Error("unknown job left in the tracked store")
	}
	if got := h.sink.next(t); got.ID != id || got.State != model.JobCompleted {
		t.Errorf("finished = %+v", got)
	}
}

func TestResumeLogsUntrackFailure(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	f := application.NewDashboardFacade(h.facade.Jobs, h.facade.Videos, &logger)
	f.Tracked = h.tracked
	h.tracked.untrackErr = errors.New("redis down")
	ctx := context.Background()
	_ = h.tracked.Track(ctx, repository.TrackedJob{JobID: "gone", SubmittedAt: time.Now()}, time.Minute)

	n, err := f.Resume(ctx)
	if err != nil || n != 0 {
		t.Fatalf("Resume = %d, %v", n, err)
	}
	out := buf.String()
	if !strings.Contains(out, "untrack unknown job") || !strings.Contains(out, "redis down") || !strings.Contains(out, `"job_id":"gone"`) {
		t.Errorf("log = %s", out)
	}
}

func TestLibraryOperations(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	ctx := context.Background()
	if _, err := h.facade.SubmitVideo(ctx, talkURL); err != nil {
		t.Fatal(err)
	}
	h.sink.next(t)

	videos, err := h.facade.Library(ctx)
	if err != nil || len(videos) != 1 {
		t.Fatalf("library = %+v, %v", videos, err)
	}
	title, err := h.facade.RenameVideo(ctx, "abc123", "  Keynote ")
	if err != nil || title != "Keynote" {
		t.Errorf("rename = %q, %v", title, err)
	}
	if err := h.facade.DeleteVideo(ctx, "abc123"); err != nil {
		t.Fatalf("DeleteVideo: %v", err)
	}
	if h.tracked.has("abc123") {
		t.Error("deleted video still tracked")
	}
	if !h.facade.BackendHealthy(ctx) {
		t.Error("backend reported down")
	}
}

func TestAttachJobAsksBackend(t *testing.T) {
	h := newHarness(t, backendsim.Options{}, 2*time.Second)
	ctx := context.Background()
	id, err := h.backend.ProcessVideo(ctx, talkURL)
	if err != nil {
		t.Fatal(err)
	}
	job, err := h.facade.AttachJob(ctx, id)
	if err != nil || job.State != model.JobCompleted {
		t.Fatalf("AttachJob = %+v, %v", job, err)
	}
	if _, err := h.facade.AttachJob(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown err = %v", err)
	}
	if _, err := h.facade.AttachJob(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank err = %v", err)
	}
}
