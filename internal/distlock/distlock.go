// Package distlock guards a job id so that only one poller waits on it at a
// time. The local lock covers a single process; the Redis and Postgres locks
// extend the guarantee across processes and hosts.
package distlock

import (
	"context"
	"sync"
	"time"
)

// DistLock is the interface for job locks.
// A lock instance belongs to one owner; concurrent owners need separate
// instances for the same key.
type DistLock interface {
	// Acquire tries to acquire the lock without blocking. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Extender is implemented by locks that expire and need refreshing while held.
type Extender interface {
	Extend(ctx context.Context, ttl time.Duration) error
}

// Factory creates a fresh lock instance for key.
type Factory func(key string) DistLock

var (
	localMu   sync.Mutex
	localHeld = map[string]*LocalLock{}
)

// LocalLock is an in-process lock backed by a package-level registry.
type LocalLock struct {
	key string
}

// NewLocalLock creates an in-process lock for key.
func NewLocalLock(key string) *LocalLock {
	return &LocalLock{key: key}
}

// Acquire succeeds when no other instance holds the key.
func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	localMu.Lock()
	defer localMu.Unlock()
	if owner, ok := localHeld[l.key]; ok {
		return owner == l, nil
	}
	localHeld[l.key] = l
	return true, nil
}

// Release frees the key if this instance holds it.
func (l *LocalLock) Release(context.Context) error {
	localMu.Lock()
	defer localMu.Unlock()
	if localHeld[l.key] == l {
		delete(localHeld, l.key)
	}
	return nil
}

// Local returns a factory of in-process locks.
func Local() Factory {
	return func(key string) DistLock { return NewLocalLock(key) }
}
