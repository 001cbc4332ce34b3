package distlock

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGAdvisoryLock uses pg_try_advisory_lock on a connection held for the
// lifetime of the lock. Advisory locks are session scoped, so the lock is
// released by the server if the connection drops.
type PGAdvisoryLock struct {
	pool   *pgxpool.Pool
	lockID int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

// NewPGAdvisoryLock creates a lock whose id is derived from key.
func NewPGAdvisoryLock(pool *pgxpool.Pool, key string) *PGAdvisoryLock {
	return &PGAdvisoryLock{pool: pool, lockID: advisoryID(key)}
}

func advisoryID(key string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("bulkctl:" + key))
	return int64(h.Sum64())
}

// Acquire tries the advisory lock without blocking.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		return true, nil
	}
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release unlocks and returns the connection to the pool.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	l.conn.Release()
	l.conn = nil
	return err
}

// Postgres returns a factory of advisory locks on pool.
func Postgres(pool *pgxpool.Pool) Factory {
	return func(key string) DistLock { return NewPGAdvisoryLock(pool, key) }
}
