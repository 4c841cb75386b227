// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
	"time"
)

const lockPacing = 500 * time.Millisecond

// Lock acquires the session-scoped advisory lock for this history table,
// blocking until it is available or ctx is cancelled.
func (s *State) Lock(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, s.lockID)
	return err
}

// TryLock attempts to acquire the advisory lock, retrying on a 500ms pace
// until timeout elapses, reporting LockError if it never succeeds.
func (s *State) TryLock(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		var acquired bool
		row := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, s.lockID)
		if err := row.Scan(&acquired); err != nil {
			return err
		}
		if acquired {
			return nil
		}

		if time.Now().After(deadline) {
			return LockError{LockID: s.lockID}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPacing):
		}
	}
}

// Unlock releases the advisory lock. Failures are returned to the caller to
// log, never to mask a primary error from the caller's own work.
func (s *State) Unlock(ctx context.Context) error {
	var released bool
	row := s.db.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, s.lockID)
	if err := row.Scan(&released); err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("advisory lock %d was not held", s.lockID)
	}
	return nil
}
