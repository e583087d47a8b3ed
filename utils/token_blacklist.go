package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList remembers logged-out tokens until their natural expiry.
// Redis is preferred; a nil client falls back to process memory.
type RevocationList struct {
	rdb *redis.Client

	mu  sync.Mutex
	mem map[string]time.Time
}

// NewRevocationList creates a list backed by rdb (may be nil).
func NewRevocationList(rdb *redis.Client) *RevocationList {
	return &RevocationList{rdb: rdb, mem: map[string]time.Time{}}
}

func revocationKey(token string) string {
	return "jwt:blacklist:" + token
}

// Revoke stores token until expiresAt.
func (l *RevocationList) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if l.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return l.rdb.Set(ctx, revocationKey(token), "1", ttl).Err()
	}
	l.mu.Lock()
	l.mem[token] = expiresAt
	l.mu.Unlock()
	return nil
}

// IsRevoked checks if a token was revoked before natural expiration.
func (l *RevocationList) IsRevoked(ctx context.Context, token string) bool {
	if l.rdb != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := l.rdb.Exists(ctx, revocationKey(token)).Result()
		if err == nil {
			return n > 0
		}
		// fail open on Redis errors to avoid locking everyone out
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.mem[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(l.mem, token)
		return false
	}
	return true
}
