package driven

import (
	"context"
	"time"
)

// DistributedLock provides named locking for serializing writes per
// document across concurrent ingestion calls and instances.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was successfully acquired, false if already
	// held elsewhere. The lock auto-expires after TTL (implementation
	// dependent).
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Best-effort; safe to call even if
	// the lock is not held or has expired.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
