package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// CodeTTL is how long an email verification code stays valid.
const CodeTTL = time.Hour

// CodeStore keeps email verification codes in Redis, keyed by username,
// expiring after CodeTTL.
type CodeStore struct {
	rdb *redis.Client
}

func NewCodeStore(rdb *redis.Client) *CodeStore {
	return &CodeStore{rdb: rdb}
}

func (s *CodeStore) Set(ctx context.Context, username, code string) error {
	return s.rdb.Set(ctx, "verify:"+username, code, CodeTTL).Err()
}

// Get returns the stored code, or "" if none exists or it has expired.
func (s *CodeStore) Get(ctx context.Context, username string) (string, error) {
	val, err := s.rdb.Get(ctx, "verify:"+username).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (s *CodeStore) Delete(ctx context.Context, username string) error {
	return s.rdb.Del(ctx, "verify:"+username).Err()
}
