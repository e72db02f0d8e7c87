package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds optimistic retries when a watched key changes
const maxUpdateRetries = 10

// RedisStore keeps sessions as JSON values with a sliding TTL
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "agrivoltaic:session:",
		now:    time.Now,
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Create(ctx context.Context) (*Session, error) {
	s := New(r.now().UTC())

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.redis.SetNX(ctx, r.key(s.ID), data, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create session in Redis: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s already exists", s.ID)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.redis.Get(ctx, r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}
	return decode(data)
}

// Update runs fn inside WATCH/MULTI so concurrent steps on the same session
// never lose a write
func (r *RedisStore) Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	key := r.key(id)
	var updated *Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return notFound(id)
		}
		if err != nil {
			return err
		}

		s, err := decode(data)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = r.now().UTC()

		out, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		if err == nil {
			updated = s
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.redis.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("session %s: update retries exhausted", id)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.redis.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session from Redis: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}
