package web

import (
	"context"
	"sync"
	"time"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/usecase"
)

// fakeDashboard keeps jobs, videos and sessions in memory. Jobs complete when
// complete is called; until then chat is refused.
type fakeDashboard struct {
	mu       sync.Mutex
	jobs     map[string]model.Job
	videos   []model.Video
	sessions map[string]*model.ChatSession
	chatErr  error
	healthy  bool
}

var _ Dashboard = (*fakeDashboard)(nil)

func newFakeDashboard() *fakeDashboard {
	return &fakeDashboard{
		jobs:     map[string]model.Job{},
		sessions: map[string]*model.ChatSession{},
		healthy:  true,
	}
}

func (d *fakeDashboard) SubmitVideo(ctx context.Context, url string) (model.Job, error) {
	id, ok := model.ExtractVideoID(url)
	if !ok {
		return model.Job{}, domain.ErrInvalidInput
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if j, ok := d.jobs[id]; ok && !j.State.IsTerminal() {
		return model.Job{}, domain.ErrAlreadyInFlight
	}
	j := model.NewJob(id, url, time.Now())
	j.Start()
	d.jobs[id] = *j
	d.videos = append(d.videos, model.Video{ID: id, Status: model.RemoteProcessing})
	return *j, nil
}

func (d *fakeDashboard) complete(id, summary string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j := d.jobs[id]
	j.Complete(&model.JobResult{VideoID: id, Title: "Talk", Summary: summary})
	d.jobs[id] = j
}

func (d *fakeDashboard) JobSnapshot(ctx context.Context, id string) (model.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	if !ok {
		return model.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (d *fakeDashboard) CancelJob(ctx context.Context, id string) (model.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[id]
	if !ok {
		return model.Job{}, domain.ErrNotFound
	}
	j.Cancel()
	d.jobs[id] = j
	return j, nil
}

func (d *fakeDashboard) OpenChat(ctx context.Context, jobID string) (*model.ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.State != model.JobCompleted {
		return nil, domain.ErrNotReady
	}
	s := model.NewChatSession("sess-"+jobID, jobID)
	d.sessions[s.ID] = s
	return s.Clone(), nil
}

func (d *fakeDashboard) SendChat(ctx context.Context, sessionID, message string) (*model.ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.AddTurn(model.RoleUser, message)
	if d.chatErr != nil {
		return s.Clone(), d.chatErr
	}
	s.AddTurn(model.RoleAssistant, "It is about "+d.jobs[s.JobID].Result.Summary+".")
	return s.Clone(), nil
}

func (d *fakeDashboard) GetChat(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.Clone(), nil
}

func (d *fakeDashboard) ListChats(ctx context.Context, jobID string) ([]*model.ChatSession, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*model.ChatSession
	for _, s := range d.sessions {
		if s.JobID == jobID {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (d *fakeDashboard) EndChat(ctx context.Context, sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
	return nil
}

func (d *fakeDashboard) Library(ctx context.Context) ([]model.Video, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Video(nil), d.videos...), nil
}

func (d *fakeDashboard) RenameVideo(ctx context.Context, id, title string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.videos {
		if d.videos[i].ID == id {
			d.videos[i].Title = title
			return title, nil
		}
	}
	return "", &domain.RemoteError{Kind: domain.ErrNotFound, Status: 404, Cause: "Video not found"}
}

func (d *fakeDashboard) DeleteVideo(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.videos {
		if d.videos[i].ID == id {
			d.videos = append(d.videos[:i], d.videos[i+1:]...)
			delete(d.jobs, id)
			return nil
		}
	}
	return &domain.RemoteError{Kind: domain.ErrNotFound, Status: 404, Cause: "Video not found"}
}

func (d *fakeDashboard) BackendHealthy(ctx context.Context) bool { return d.healthy }

func (d *fakeDashboard) JobStats(ctx context.Context, recent int) (usecase.JobStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := usecase.JobStats{Tracked: map[model.JobState]int{}}
	for _, j := range d.jobs {
		st.Tracked[j.State]++
	}
	return st, nil
}

// countingLimiter allows the first n hits per key.
type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}
