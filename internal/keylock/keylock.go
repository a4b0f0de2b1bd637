// Package keylock serializes work on the same key, either within one
// process or across processes through Redis.
package keylock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spherical/deck-narrator/internal/config"
)

// ErrLockTimeout is returned when ctx ends before the lock is acquired.
var ErrLockTimeout = errors.New("lock not acquired")

// Locker hands out exclusive per-key locks.
type Locker interface {
	// Lock blocks until key is held or ctx is done. The returned function
	// releases the lock and is safe to call more than once.
	Lock(ctx context.Context, key string) (func(), error)
	Close() error
}

var (
	_ Locker = (*MemoryLocker)(nil)
	_ Locker = (*RedisLocker)(nil)
)

// MemoryLocker is a process-local Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

type memLock struct {
	ch      chan struct{}
	waiters int
}

// NewMemoryLocker creates a process-local locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*memLock)}
}

// Lock implements Locker.
func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &memLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.waiters++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk, false)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, lk, true) })
	}, nil
}

func (l *MemoryLocker) release(key string, lk *memLock, held bool) {
	if held {
		<-lk.ch
	}
	l.mu.Lock()
	lk.waiters--
	if lk.waiters == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// Close implements Locker.
func (l *MemoryLocker) Close() error {
	return nil
}

// size reports the number of tracked keys.
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// New builds the Locker selected by cfg.Driver.
func New(cfg config.LockConfig) (Locker, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryLocker(), nil
	case "redis":
		locker, err := NewRedisLocker(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			TLS:      cfg.Redis.TLS,
			Prefix:   cfg.Redis.KeyPrefix,
			TTL:      cfg.TTL,
		})
		if err != nil {
			return nil, err
		}
		return locker, nil
	default:
		return nil, fmt.Errorf("unsupported lock driver: %s", cfg.Driver)
	}
}
