package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/vault_ledger/internal/logging"
)

func TestKeyedMutexSerialisesSameKey(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := k.Lock(ctx, "vault:a")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size(), "entries should be released")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	k := NewKeyedMutex()
	ctx := context.Background()

	unlockA, err := k.Lock(ctx, "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB, err := k.Lock(ctx, "b")
		if err == nil {
			unlockB()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
	unlock()
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutexCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewKeyedMutex().Lock(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	mr, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Second, logging.Discard())
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "vault:a")
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisLockPrefix+"vault:a"))

	unlock()
	assert.False(t, mr.Exists(redisLockPrefix+"vault:a"))
}

func TestRedisLockerContention(t *testing.T) {
	_, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Second, logging.Discard())
	locker.maxWait = 100 * time.Millisecond
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "vault:a")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "vault:a")
	require.True(t, errors.Is(err, ErrNotAcquired), "got %v", err)

	unlock()

	unlock2, err := locker.Lock(ctx, "vault:a")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	mr, client := setupRedis(t)
	locker := NewRedisLocker(client, time.Second, logging.Discard())

	unlock, err := locker.Lock(context.Background(), "vault:a")
	require.NoError(t, err)

	// Simulate expiry and takeover by another instance.
	require.NoError(t, mr.Set(redisLockPrefix+"vault:a", "someone-else"))
	unlock()

	got, err := mr.Get(redisLockPrefix + "vault:a")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
