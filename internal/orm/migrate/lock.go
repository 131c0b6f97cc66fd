package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes synchronization across processes. Acquire blocks until
// the lock is held or ctx is done and returns the function releasing it.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// NoopLocker is used when a single process owns the schema
type NoopLocker struct{}

// Acquire always succeeds immediately
func (NoopLocker) Acquire(context.Context) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

// Deletes the key only while it still holds our token, so an expired lock
// re-acquired by another process is left alone
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker with SET NX PX on a single key
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
}

// RedisLockerConfig holds configuration for the Redis migration lock
type RedisLockerConfig struct {
	// Client is the Redis client to use
	Client *redis.Client
	// Key is the lock key
	Key string
	// TTL bounds how long a crashed holder can block other processes
	TTL time.Duration
	// RetryInterval is the pause between acquisition attempts
	RetryInterval time.Duration
}

// DefaultRedisLockerConfig returns a default lock configuration
func DefaultRedisLockerConfig(client *redis.Client) RedisLockerConfig {
	return RedisLockerConfig{
		Client:        client,
		Key:           "recordkit:migrate",
		TTL:           30 * time.Second,
		RetryInterval: 100 * time.Millisecond,
	}
}

// NewRedisLocker creates a new Redis-backed migration lock
func NewRedisLocker(config RedisLockerConfig) (*RedisLocker, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Key == "" {
		return nil, errors.New("lock key is required")
	}
	if config.TTL <= 0 {
		return nil, errors.New("lock ttl must be greater than 0")
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 100 * time.Millisecond
	}

	return &RedisLocker{
		client: config.Client,
		key:    config.Key,
		ttl:    config.TTL,
		retry:  config.RetryInterval,
	}, nil
}

// Acquire polls until the key is set or ctx is done
func (l *RedisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
			}
			return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
					return fmt.Errorf("failed to release migration lock: %w", err)
				}
				return nil
			}, nil
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}
}
