package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/Black-synapse-CU/black-synapse-ingestion/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*AdvisoryLock)(nil)

// AdvisoryLock implements DistributedLock using PostgreSQL advisory locks.
//
// Advisory locks are session-scoped and re-entrant within a session, so each
// acquired lock pins its own dedicated connection for the lock's lifetime:
// acquiring and releasing through the shared pool would let a second Acquire
// re-enter on the pooled session already holding the lock, and route Release
// to a session that never held it. The TTL parameter is ignored; a lock is
// released explicitly or when its pinned connection closes. For
// multi-instance deployments the Redis lock is preferred; this is the
// fallback when Redis is not configured.
type AdvisoryLock struct {
	db *DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLock creates a new PostgreSQL advisory lock adapter.
func NewAdvisoryLock(db *DB) *AdvisoryLock {
	return &AdvisoryLock{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

// hashLockName converts a string lock name to a 64-bit integer for
// PostgreSQL advisory locks. Uses FNV-1a for consistent, well-distributed
// values.
func hashLockName(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte("synapse:lock:" + name))
	return int64(h.Sum64())
}

// Acquire attempts to acquire a named advisory lock on a fresh connection.
// Uses pg_try_advisory_lock which returns immediately without blocking. The
// connection is held open until Release so the lock stays owned by exactly
// one session.
func (l *AdvisoryLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	lockID := hashLockName(name)

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	l.mu.Lock()
	l.conns[name] = conn
	l.mu.Unlock()
	return true, nil
}

// Release releases a named advisory lock on the connection that acquired it,
// then returns that connection to the pool. Safe to call for a lock this
// instance does not hold.
func (l *AdvisoryLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	conn, held := l.conns[name]
	delete(l.conns, name)
	l.mu.Unlock()

	if !held {
		return nil
	}
	defer conn.Close()

	lockID := hashLockName(name)
	var released bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the lock backend is healthy.
func (l *AdvisoryLock) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}
