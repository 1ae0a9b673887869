package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/metrics"
)

var ErrCacheMiss = errors.New("cache miss")

// ChatCache keeps recently used chat sessions, turns included, under
// chat_session:<id>.
type ChatCache struct {
	kv  KV
	ttl time.Duration
}

func NewChatCache(kv KV, ttl time.Duration) *ChatCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ChatCache{kv: kv, ttl: ttl}
}

func sessionKey(id string) string { return "chat_session:" + id }

func (c *ChatCache) StoreSession(ctx context.Context, session *model.ChatSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, sessionKey(session.ID), data, c.ttl)
}

func (c *ChatCache) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	data, err := c.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			metrics.IncCacheRequest("chat_session", "miss")
		}
		return nil, err
	}
	var session model.ChatSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	metrics.IncCacheRequest("chat_session", "hit")
	return &session, nil
}

func (c *ChatCache) DeleteSession(ctx context.Context, sessionID string) error {
	return c.kv.Del(ctx, sessionKey(sessionID))
}

func (c *ChatCache) ExtendSession(ctx context.Context, sessionID string) error {
	return c.kv.Expire(ctx, sessionKey(sessionID), c.ttl)
}
