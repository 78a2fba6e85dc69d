package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ai-assistant-be/pkg/llm"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Store keeps per-session conversation turns for the enricher and the
// prompt builder. Turns come back oldest first.
type Store interface {
	Append(ctx context.Context, sessionID string, msg llm.Message) error
	Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error)
}

type storedTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RedisStore keeps capped per-session lists in redis so history survives
// restarts and is shared across instances.
type RedisStore struct {
	rdb    *redis.Client
	maxLen int64
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, maxLen int) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		maxLen: int64(maxLen),
		ttl:    24 * time.Hour,
	}
}

func historyKey(sessionID string) string {
	return "chat:history:" + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msg llm.Message) error {
	payload, err := json.Marshal(storedTurn{Role: msg.Role, Content: msg.Content})
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	key := historyKey(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, s.maxLen-1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if limit <= 0 || int64(limit) > s.maxLen {
		limit = int(s.maxLen)
	}

	raw, err := s.rdb.LRange(ctx, historyKey(sessionID), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// LPUSH stores newest first; reverse to oldest first.
	messages := make([]llm.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var turn storedTurn
		if err := json.Unmarshal([]byte(raw[i]), &turn); err != nil {
			continue
		}
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	return messages, nil
}

// MemoryStore is the single-instance fallback when redis is not configured.
type MemoryStore struct {
	mu     sync.Mutex
	cache  *cache.Cache
	maxLen int
}

func NewMemoryStore(maxLen int) *MemoryStore {
	return &MemoryStore{
		cache:  cache.New(1*time.Hour, 10*time.Minute),
		maxLen: maxLen,
	}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msg llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []llm.Message
	if x, found := s.cache.Get(sessionID); found {
		turns = x.([]llm.Message)
	}

	turns = append(turns, msg)
	if len(turns) > s.maxLen {
		turns = turns[len(turns)-s.maxLen:]
	}

	s.cache.Set(sessionID, turns, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, sessionID string, limit int) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(sessionID)
	if !found {
		return nil, nil
	}

	turns := x.([]llm.Message)
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]llm.Message, len(turns))
	copy(out, turns)
	return out, nil
}
