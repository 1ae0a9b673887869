// File: internal/infra/db/postgres/postgres_chat_session_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/repository"
	"vidiwise/internal/infra/redis"
	"vidiwise/internal/infra/security"
)

var _ repository.ChatSessionRepository = (*ChatSessionRepo)(nil)

// ChatSessionRepo stores sessions and their turns. Turn content is sealed
// when an encryption key is configured, and whole sessions are cached in
// redis when a cache is given.
type ChatSessionRepo struct {
	pool  *pgxpool.Pool
	cache *redis.ChatCache
	enc   *security.EncryptionService
}

func NewChatSessionRepo(pool *pgxpool.Pool, cache *redis.ChatCache, enc *security.EncryptionService) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool, cache: cache, enc: enc}
}

func (r *ChatSessionRepo) Save(ctx context.Context, qx any, s *model.ChatSession) error {
	const q = `
INSERT INTO chat_sessions (id, job_id, created_at, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
  job_id = EXCLUDED.job_id,
  updated_at = EXCLUDED.updated_at;`
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, s.ID, s.JobID, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	r.refresh(ctx, qx, s)
	return nil
}

func (r *ChatSessionRepo) SaveTurn(ctx context.Context, qx any, t *model.ChatTurn) error {
	content, err := r.enc.Seal(t.Content)
	if err != nil {
		return fmt.Errorf("seal turn: %w", err)
	}
	const q = `
INSERT INTO chat_turns (id, session_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING;`
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, t.ID, t.SessionID, string(t.Role), content, t.Timestamp); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	r.invalidate(ctx, t.SessionID)
	return nil
}

func (r *ChatSessionRepo) Delete(ctx context.Context, qx any, id string) error {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM chat_sessions WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	r.invalidate(ctx, id)
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) FindByID(ctx context.Context, qx any, id string) (*model.ChatSession, error) {
	if r.cache != nil && !inTx(qx) {
		if s, err := r.cache.GetSession(ctx, id); err == nil {
			_ = r.cache.ExtendSession(ctx, id)
			return s, nil
		}
	}
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	var s model.ChatSession
	err = ex.QueryRow(ctx, `SELECT id, job_id, created_at, updated_at FROM chat_sessions WHERE id=$1;`, id).
		Scan(&s.ID, &s.JobID, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if s.Turns, err = r.turns(ctx, ex, s.ID); err != nil {
		return nil, err
	}
	r.refresh(ctx, qx, &s)
	return &s, nil
}

func (r *ChatSessionRepo) FindAllByJob(ctx context.Context, qx any, jobID string) ([]*model.ChatSession, error) {
	ex, err := pick(r.pool, qx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT id, job_id, created_at, updated_at FROM chat_sessions WHERE job_id=$1 ORDER BY created_at DESC;`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	var out []*model.ChatSession
	for rows.Next() {
		var s model.ChatSession
		if err := rows.Scan(&s.ID, &s.JobID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, &s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// turns are loaded after the session cursor is closed; a tx can only
	// stream one result set at a time
	for _, s := range out {
		if s.Turns, err = r.turns(ctx, ex, s.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CleanupOldTurns deletes turns older than retention and drops cached
// sessions that lost turns.
func (r *ChatSessionRepo) CleanupOldTurns(ctx context.Context, retention time.Duration) (int64, error) {
	const q = `DELETE FROM chat_turns WHERE created_at < $1 RETURNING session_id;`
	rows, err := r.pool.Query(ctx, q, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("purge turns: %w", err)
	}
	defer rows.Close()
	touched := map[string]struct{}{}
	var n int64
	for rows.Next() {
		var sid string
		if err := rows.Scan(&sid); err != nil {
			return n, err
		}
		touched[sid] = struct{}{}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for sid := range touched {
		r.invalidate(ctx, sid)
	}
	return n, nil
}

func (r *ChatSessionRepo) turns(ctx context.Context, ex executor, sessionID string) ([]model.ChatTurn, error) {
	rows, err := ex.Query(ctx, `SELECT id, role, content, created_at FROM chat_turns WHERE session_id=$1 ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()
	out := make([]model.ChatTurn, 0, 8)
	for rows.Next() {
		var t model.ChatTurn
		var role, content string
		if err := rows.Scan(&t.ID, &role, &content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if t.Content, err = r.enc.Open(content); err != nil {
			return nil, fmt.Errorf("open turn %s: %w", t.ID, err)
		}
		t.SessionID = sessionID
		t.Role = model.ChatRole(role)
		out = append(out, t)
	}
	return out, rows.Err()
}

// refresh caches s, or drops the cached copy when the write is part of an
// uncommitted transaction.
func (r *ChatSessionRepo) refresh(ctx context.Context, qx any, s *model.ChatSession) {
	if r.cache == nil {
		return
	}
	if inTx(qx) {
		_ = r.cache.DeleteSession(ctx, s.ID)
		return
	}
	_ = r.cache.StoreSession(ctx, s)
}

func (r *ChatSessionRepo) invalidate(ctx context.Context, sessionID string) {
	if r.cache != nil {
		_ = r.cache.DeleteSession(ctx, sessionID)
	}
}
