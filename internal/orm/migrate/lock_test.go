package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
)

var (
	_ Locker = NoopLocker{}
	_ Locker = (*RedisLocker)(nil)
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func newTestLocker(t *testing.T, client *redis.Client) *RedisLocker {
	t.Helper()
	config := DefaultRedisLockerConfig(client)
	config.RetryInterval = 10 * time.Millisecond
	locker, err := NewRedisLocker(config)
	require.NoError(t, err)
	return locker
}

func TestNewRedisLocker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		config RedisLockerConfig
	}{
		{"nil client", RedisLockerConfig{Key: "k", TTL: time.Second}},
		{"empty key", RedisLockerConfig{Client: &redis.Client{}, TTL: time.Second}},
		{"zero ttl", RedisLockerConfig{Client: &redis.Client{}, Key: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisLocker(tt.config)
			assert.Error(t, err)
		})
	}
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := newTestLocker(t, client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("recordkit:migrate"))
	assert.Equal(t, 30*time.Second, mr.TTL("recordkit:migrate"))

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("recordkit:migrate"))

	release, err = locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := newTestLocker(t, client)
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	// the lock expired and another process took it
	require.NoError(t, mr.Set("recordkit:migrate", "someone-else"))

	require.NoError(t, release(ctx))
	value, err := mr.Get("recordkit:migrate")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestSynchronizer_WaitsForLock(t *testing.T) {
	client, _ := setupTestRedis(t)
	locker := newTestLocker(t, client)

	release, err := locker.Acquire(context.Background())
	require.NoError(t, err)
	defer release(context.Background())

	db, mock := newMock(t)
	sync := NewSynchronizer(db, dialect.MySQL{}, WithLocker(locker))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sync.Migrate(ctx, descriptors(t, note{}))
	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.NoError(t, mock.ExpectationsWereMet())
}
