package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AdvisoryLock is a session-scoped postgres advisory lock. It pins a single
// connection so the unlock runs on the same session that acquired the lock.
type AdvisoryLock struct {
	conn *sql.Conn
	key  int64
}

// TryAdvisoryLock attempts a non-blocking acquire of the named lock. When the
// lock is held elsewhere it returns (nil, false, nil) and releases the pinned
// connection.
func TryAdvisoryLock(ctx context.Context, db *sql.DB, key int64) (*AdvisoryLock, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&locked); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("try advisory lock %d: %w", key, err)
	}
	if !locked {
		conn.Close()
		return nil, false, nil
	}

	return &AdvisoryLock{conn: conn, key: key}, true, nil
}

// Unlock releases the advisory lock and returns the connection to the pool.
// Safe to call from a defer regardless of how the guarded work ended.
func (l *AdvisoryLock) Unlock(ctx context.Context) error {
	defer l.conn.Close()

	var released bool
	if err := l.conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&released); err != nil {
		return fmt.Errorf("advisory unlock %d: %w", l.key, err)
	}
	if !released {
		return fmt.Errorf("advisory unlock %d: lock was not held", l.key)
	}
	return nil
}
