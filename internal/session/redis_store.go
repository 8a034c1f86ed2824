package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL   = 5 * time.Second
	lockRetryDelay   = 20 * time.Millisecond
	lockRetryAttempt = 25
)

// unlockScript only deletes the lock if we still own it.
var unlockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisStore keeps live session state in Redis so several API replicas can
// serve the same browser session. Keys expire after the idle TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store whose session keys expire after ttl of inactivity.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		redis:  client,
		ttl:    ttl,
		logger: logger.With().Str("component", "session_redis_store").Logger(),
	}
}

func sessionKey(id uuid.UUID) string {
	return fmt.Sprintf("quiz:session:%s", id.String())
}

func lockKey(id uuid.UUID) string {
	return fmt.Sprintf("quiz:session:lock:%s", id.String())
}

func (s *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) (*Record, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id.String()).Msg("skip corrupted session state")
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.redis.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Lock acquires a short-lived distributed lock for a session's transitions.
// It retries briefly before giving up with ErrSessionBusy.
func (s *RedisStore) Lock(ctx context.Context, id uuid.UUID) (func() error, error) {
	key := lockKey(id)
	value := uuid.New().String()

	for attempt := 0; attempt < lockRetryAttempt; attempt++ {
		acquired, err := s.redis.SetNX(ctx, key, value, defaultLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if acquired {
			return func() error {
				return unlockScript.Run(context.Background(), s.redis, []string{key}, value).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
	return nil, ErrSessionBusy
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
