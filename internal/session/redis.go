package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ussd:session:"

// RedisStore keeps sessions in Redis with a sliding TTL so several service
// instances can share them. Per-key serialisation is per process.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
	locks  KeyedMutex
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func (r *RedisStore) Acquire(ctx context.Context, key string, initial State) (*Session, func(), error) {
	release := r.locks.Lock(key)

	s := &Session{Key: key, State: initial}
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		release()
		return nil, func() {}, fmt.Errorf("load session: %w", err)
	default:
		if err := json.Unmarshal(data, s); err != nil {
			// unreadable state starts over rather than wedging the caller
			s = &Session{Key: key, State: initial}
		}
	}
	s.LastActive = r.now()
	return s, release, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.LastActive = r.now()
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+s.Key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
