package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchemaLockWait bounds how long WithSchemaLock blocks on acquisition.
const DefaultSchemaLockWait = 30 * time.Second

// ErrSchemaLockTimeout indicates the named lock could not be acquired in time.
var ErrSchemaLockTimeout = errors.New("platform/db: schema lock acquisition timed out")

// WithSchemaLock serializes schema-affecting maintenance work behind a named
// Postgres advisory lock. Session-level advisory locks are connection scoped,
// so the lock is taken and released on one dedicated pooled connection. The
// wait is bounded via lock_timeout; on timeout the caller gets
// ErrSchemaLockTimeout instead of hanging. The lock is always released, even
// when fn fails.
func WithSchemaLock(ctx context.Context, pool *pgxpool.Pool, name string, wait time.Duration, fn func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("platform/db: schema lock name required")
	}
	if wait <= 0 {
		wait = DefaultSchemaLockWait
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("platform/db: acquire conn for schema lock: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, fmt.Sprintf("SET lock_timeout = '%dms'", wait.Milliseconds())); err != nil {
		return fmt.Errorf("platform/db: set lock_timeout: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock(hashtext($1))`, name); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
			return fmt.Errorf("%w: %s", ErrSchemaLockTimeout, name)
		}
		return fmt.Errorf("platform/db: acquire schema lock %s: %w", name, err)
	}
	defer func() {
		_, _ = conn.Exec(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock(hashtext($1))`, name)
	}()

	return fn(ctx)
}
