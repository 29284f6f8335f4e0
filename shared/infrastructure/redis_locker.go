package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/draftea/order-saga/shared/models"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a per-key mutual exclusion lock shared by every replica.
// Locks expire after ttl so a crashed holder cannot block a key forever.
type RedisLocker struct {
	client    redis.UniversalClient
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
	logger    zerolog.Logger
}

// NewRedisLocker creates a locker storing keys under prefix
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl, retryWait time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if retryWait <= 0 {
		retryWait = 20 * time.Millisecond
	}
	return &RedisLocker{
		client:    client,
		prefix:    prefix,
		ttl:       ttl,
		retryWait: retryWait,
		logger:    logger.With().Str("component", "redis_locker").Logger(),
	}
}

// Lock blocks until key is acquired or ctx is done. The returned unlock
// is safe to call more than once.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := models.GenerateUUID().String()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to acquire lock %s", redisKey)
		}
		if ok {
			break
		}

		t := time.NewTimer(l.retryWait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Wrapf(ctx.Err(), "waiting for lock %s", redisKey)
		case <-t.C:
		}
	}

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Error().Err(err).Str("key", redisKey).Msg("failed to release lock")
			}
		})
	}

	return unlock, nil
}

// Ping checks connectivity
func (l *RedisLocker) Ping(ctx context.Context) error {
	return errors.Wrap(l.client.Ping(ctx).Err(), "redis ping failed")
}

// Close closes the underlying client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
