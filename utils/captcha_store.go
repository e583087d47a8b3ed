package utils

import (
	"time"

	"github.com/mojocn/base64Captcha"
	"github.com/redis/go-redis/v9"
)

// redisCaptchaStore implements base64Captcha.Store backed by Redis
// so captchas work behind load balancers.
type redisCaptchaStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func newRedisCaptchaStore(rdb *redis.Client, ttl time.Duration) base64Captcha.Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &redisCaptchaStore{rdb: rdb, ttl: ttl}
}

func (s *redisCaptchaStore) key(id string) string {
	return "captcha:" + id
}

// Set stores the captcha value with TTL.
func (s *redisCaptchaStore) Set(id string, value string) error {
	ctx, cancel := redisCtx()
	defer cancel()
	return s.rdb.Set(ctx, s.key(id), value, s.ttl).Err()
}

// Get retrieves the value and optionally clears it.
func (s *redisCaptchaStore) Get(id string, clear bool) string {
	ctx, cancel := redisCtx()
	defer cancel()
	key := s.key(id)
	if !clear {
		v, err := s.rdb.Get(ctx, key).Result()
		if err != nil {
			return ""
		}
		return v
	}
	if v, err := s.rdb.GetDel(ctx, key).Result(); err == nil {
		return v
	}
	res, err := s.rdb.Eval(ctx, getDelScript, []string{key}).Result()
	if err != nil || res == nil {
		return ""
	}
	v, _ := res.(string)
	return v
}

// Verify compares answer and optionally clears it.
func (s *redisCaptchaStore) Verify(id, answer string, clear bool) bool {
	v := s.Get(id, clear)
	return v != "" && v == answer
}
