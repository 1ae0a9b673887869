package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn represents one message within a chat session.
// IDs are ULIDs, so sorting by ID yields conversation order.
type ChatTurn struct {
	ID        string
	SessionID string
	Role      ChatRole
	Content   string
	Timestamp time.Time
}

// ChatSession is an ordered conversation about the result of one completed job.
type ChatSession struct {
	ID        string
	JobID     string
	Turns     []ChatTurn
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewChatSession(id, jobID string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:        id,
		JobID:     jobID,
		Turns:     make([]ChatTurn, 0, 8),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddTurn appends a turn and returns it.
func (s *ChatSession) AddTurn(role ChatRole, content string) ChatTurn {
	now := time.Now()
	t := ChatTurn{
		ID:        ulid.Make().String(),
		SessionID: s.ID,
		Role:      role,
		Content:   content,
		Timestamp: now,
	}
	s.Turns = append(s.Turns, t)
	s.UpdatedAt = now
	return t
}

func (s *ChatSession) LastTurn() (ChatTurn, bool) {
	if len(s.Turns) == 0 {
		return ChatTurn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

func (s *ChatSession) RecentTurns(n int) []ChatTurn {
	if n <= 0 || len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Clone returns a deep copy of the session.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Turns = append(make([]ChatTurn, 0, len(s.Turns)), s.Turns...)
	return &c
}
