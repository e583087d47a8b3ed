package utils

import (
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const getDelScript = `local v=redis.call('GET', KEYS[1]); if v then redis.call('DEL', KEYS[1]); end; return v`

// StateStore holds single-use OAuth state tokens to mitigate CSRF.
type StateStore struct {
	rdb *redis.Client

	mu  sync.Mutex
	mem map[string]time.Time
}

// NewStateStore creates a store backed by rdb (may be nil).
func NewStateStore(rdb *redis.Client) *StateStore {
	return &StateStore{rdb: rdb, mem: map[string]time.Time{}}
}

// Save stores state for ttl (10 minutes when ttl <= 0). A state that could not
// be stored would never validate, so the redis error is returned.
func (s *StateStore) Save(state string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if s.rdb != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		if err := s.rdb.Set(ctx, "oauth:state:"+state, "1", ttl).Err(); err != nil {
			return fmt.Errorf("store oauth state: %w", err)
		}
		return nil
	}
	s.mu.Lock()
	s.mem[state] = time.Now().Add(ttl)
	s.mu.Unlock()
	return nil
}

// Consume validates and removes state.
func (s *StateStore) Consume(state string) bool {
	if state == "" {
		return false
	}
	if s.rdb != nil {
		ctx, cancel := redisCtx()
		defer cancel()
		key := "oauth:state:" + state
		// GETDEL keeps it single-use
		if v, err := s.rdb.GetDel(ctx, key).Result(); err == nil {
			return v != ""
		}
		// servers older than 6.2 lack GETDEL
		if res, err := s.rdb.Eval(ctx, getDelScript, []string{key}).Result(); err == nil {
			return res != nil
		}
		return false
	}

	s.mu.Lock()
	exp, ok := s.mem[state]
	if ok {
		delete(s.mem, state)
	}
	s.mu.Unlock()
	return ok && time.Now().Before(exp)
}
