package postgres

import (
	"context"
	"fmt"
	"log"
	"time"
)

const (
	// indexLockKey identifies the advisory lock guarding index writes.
	// All writer processes must agree on this value.
	indexLockKey = 0x4556_4C45 // "EVLE"

	lockWaitTimeout  = 5 * time.Second
	lockPollInterval = 250 * time.Millisecond
)

// AdvisoryLocker serializes index writes across processes using a PostgreSQL
// session-level advisory lock. The lock is tied to a dedicated connection so
// that pool recycling cannot release it early.
type AdvisoryLocker struct {
	pool *Pool
}

// NewAdvisoryLocker creates a locker backed by the given pool.
func NewAdvisoryLocker(pool *Pool) *AdvisoryLocker {
	return &AdvisoryLocker{pool: pool}
}

// Acquire tries to take the index write lock, polling for up to five seconds.
// It returns a release function and whether the lock was actually acquired.
// When acquisition fails the release function is still safe to call; callers
// proceed without the lock and must flag the run as unlocked.
func (l *AdvisoryLocker) Acquire(ctx context.Context) (release func(), acquired bool, err error) {
	conn, err := l.pool.db.Conn(ctx)
	if err != nil {
		return func() {}, false, fmt.Errorf("acquiring lock connection: %w", err)
	}

	deadline := time.Now().Add(lockWaitTimeout)
	for {
		var got bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", indexLockKey).Scan(&got); err != nil {
			conn.Close()
			return func() {}, false, fmt.Errorf("trying advisory lock: %w", err)
		}
		if got {
			break
		}
		if time.Now().After(deadline) {
			conn.Close()
			return func() {}, false, nil
		}
		select {
		case <-ctx.Done():
			conn.Close()
			return func() {}, false, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	release = func() {
		// Unlock on the same session that holds the lock. Closing the
		// connection would release it as well; the explicit unlock keeps
		// the release deterministic.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", indexLockKey).Scan(&released); err != nil {
			log.Printf("releasing advisory lock: %v", err)
		} else if !released {
			log.Printf("advisory lock was not held at release")
		}
		conn.Close()
	}
	return release, true, nil
}
