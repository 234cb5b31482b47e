// Package lock serialises work on a single key while leaving other keys free.
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrNotAcquired is returned when a lock could not be obtained before giving up.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker grants exclusive access to a key until the returned unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is an in-process Locker holding one mutex per key. Entries are
// dropped once no goroutine holds or waits on them.
type KeyedMutex struct {
	mapMu sync.Mutex
	locks map[string]*keyedEntry
}

// NewKeyedMutex builds an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free. The context is only checked before waiting.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mapMu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyedEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mapMu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mapMu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, key)
			}
			k.mapMu.Unlock()
		})
	}, nil
}

func (k *KeyedMutex) size() int {
	k.mapMu.Lock()
	defer k.mapMu.Unlock()
	return len(k.locks)
}
