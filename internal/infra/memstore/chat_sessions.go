// Package memstore keeps chat sessions in process memory for deployments
// without a database: the CLI, the demo and a gateway started without
// database.url.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.ChatSessionRepository = (*ChatSessions)(nil)

type ChatSessions struct {
	mu       sync.RWMutex
	sessions map[string]model.ChatSession // turns are kept in turns
	turns    map[string][]model.ChatTurn
}

func NewChatSessions() *ChatSessions {
	return &ChatSessions{
		sessions: make(map[string]model.ChatSession),
		turns:    make(map[string][]model.ChatTurn),
	}
}

func (m *ChatSessions) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Turns = nil
	m.sessions[s.ID] = cp
	return nil
}

// SaveTurn ignores a turn id that is already stored.
func (m *ChatSessions) SaveTurn(ctx context.Context, qx any, t *model.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[t.SessionID]; !ok {
		return domain.ErrNotFound
	}
	for _, have := range m.turns[t.SessionID] {
		if have.ID == t.ID {
			return nil
		}
	}
	m.turns[t.SessionID] = append(m.turns[t.SessionID], *t)
	return nil
}

func (m *ChatSessions) Delete(ctx context.Context, qx any, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.turns, id)
	return nil
}

func (m *ChatSessions) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.load(id)
}

func (m *ChatSessions) FindAllByJob(ctx context.Context, qx any, jobID string) ([]*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ChatSession
	for id, s := range m.sessions {
		if s.JobID != jobID {
			continue
		}
		full, _ := m.load(id)
		out = append(out, full)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *ChatSessions) CleanupOldTurns(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, turns := range m.turns {
		kept := turns[:0]
		for _, t := range turns {
			if t.Timestamp.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, t)
		}
		m.turns[id] = kept
	}
	return n, nil
}

// load copies a session with its turns in id order. Caller holds m.mu.
func (m *ChatSessions) load(id string) (*model.ChatSession, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	s.Turns = append(make([]model.ChatTurn, 0, len(m.turns[id])), m.turns[id]...)
	sort.Slice(s.Turns, func(i, j int) bool { return s.Turns[i].ID < s.Turns[j].ID })
	return &s, nil
}
