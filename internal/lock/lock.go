// Package lock implements the two TTL-based locks the orchestrator uses to
// serialize mutating operations: the per-(session, operation) session lock
// and the singleton merge-queue processing lock. Both share one capability
// set and are backed by the same Manager rather than separate types.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

// Handle is the credential returned by a successful acquire. Renew and
// Release accept only a Handle obtained from the matching Acquire call.
type Handle struct {
	kind        handleKind
	sessionName string
	operation   models.Operation
	agentID     string
	expiresAt   time.Time
}

type handleKind int

const (
	kindSession handleKind = iota
	kindProcessing
)

// ExpiresAt reports when the held lock is no longer valid absent a renewal.
func (h Handle) ExpiresAt() time.Time { return h.expiresAt }

// Manager acquires, renews, and releases session locks and the processing
// lock against a shared database handle.
type Manager struct {
	db *sql.DB
}

// NewManager wraps db for lock operations.
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// AcquireSession attempts to take the (session, operation) lock for ttl.
// Returns *models.SessionLockedError if a live row already exists.
func (m *Manager) AcquireSession(ctx context.Context, session models.SessionName, op models.Operation, agentID string, ttl time.Duration) (Handle, error) {
	if !op.Valid() {
		return Handle{}, &models.ValidationError{Field: "operation", Value: string(op), Message: "not a recognized lock operation"}
	}

	var handle Handle
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		// Opportunistic cleanup: an acquire attempt first deletes the
		// conflicting row if it has expired.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM session_locks WHERE session_name = ? AND operation = ? AND expires_at <= unixepoch()
		`, string(session), string(op)); err != nil {
			return fmt.Errorf("clean expired session lock: %w", err)
		}

		var existingExpiry int64
		err := tx.QueryRowContext(ctx, `
			SELECT expires_at FROM session_locks WHERE session_name = ? AND operation = ?
		`, string(session), string(op)).Scan(&existingExpiry)
		if err == nil {
			return &models.SessionLockedError{
				SessionName: string(session),
				Operation:   string(op),
				ExpiresAt:   fromUnix(existingExpiry).Format(time.RFC3339),
			}
		}
		if err != sql.ErrNoRows {
			return err
		}

		expiresAt := time.Now().Add(ttl)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_locks (session_name, operation, agent_id, acquired_at, expires_at)
			VALUES (?, ?, ?, unixepoch(), ?)
		`, string(session), string(op), agentID, expiresAt.Unix()); err != nil {
			return err
		}

		handle = Handle{kind: kindSession, sessionName: string(session), operation: op, agentID: agentID, expiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return Handle{}, err
	}
	return handle, nil
}

// RenewSession extends a session lock's expiry, only if the caller's agent
// still owns the row. Returns *models.LockExpiredError if the row is gone or
// owned by a different agent.
func (m *Manager) RenewSession(ctx context.Context, h Handle, ttl time.Duration) (Handle, error) {
	if h.kind != kindSession {
		return Handle{}, fmt.Errorf("handle is not a session lock handle")
	}
	newExpiry := time.Now().Add(ttl)
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE session_locks SET expires_at = ?
			WHERE session_name = ? AND operation = ? AND agent_id = ? AND expires_at > unixepoch()
		`, newExpiry.Unix(), h.sessionName, string(h.operation), h.agentID)
		if err != nil {
			return err
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if ra == 0 {
			return &models.LockExpiredError{SessionName: h.sessionName, Operation: string(h.operation)}
		}
		return nil
	})
	if err != nil {
		return Handle{}, err
	}
	h.expiresAt = newExpiry
	return h, nil
}

// ReleaseSession deletes the lock row iff it is still owned by the handle's
// agent; releasing an already-expired or already-released lock is a no-op.
func (m *Manager) ReleaseSession(ctx context.Context, h Handle) error {
	if h.kind != kindSession {
		return fmt.Errorf("handle is not a session lock handle")
	}
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM session_locks WHERE session_name = ? AND operation = ? AND agent_id = ?
	`, h.sessionName, string(h.operation), h.agentID)
	return err
}

// ForceReleaseSession deletes the (session, operation) lock row regardless
// of which agent owns it. Used by administrative flows (queue cancel,
// recovery sweep) that must clear a lock without holding its handle.
func (m *Manager) ForceReleaseSession(ctx context.Context, session models.SessionName, op models.Operation) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM session_locks WHERE session_name = ? AND operation = ?
	`, string(session), string(op))
	return err
}

// IsSessionLocked reports whether a live (non-expired) lock exists for
// (session, operation).
func (m *Manager) IsSessionLocked(ctx context.Context, session models.SessionName, op models.Operation) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_locks WHERE session_name = ? AND operation = ? AND expires_at > unixepoch()
	`, string(session), string(op)).Scan(&n)
	return n > 0, err
}

// TryAcquireProcessing attempts to take the singleton processing lock (row
// id=1). Returns *models.ProcessingLockedError if a live row already exists,
// including one held by agentID itself.
func (m *Manager) TryAcquireProcessing(ctx context.Context, agentID string, ttl time.Duration) (Handle, error) {
	var handle Handle
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM processing_lock WHERE id = 1 AND expires_at <= unixepoch()
		`); err != nil {
			return fmt.Errorf("clean expired processing lock: %w", err)
		}

		var existingExpiry int64
		err := tx.QueryRowContext(ctx, `SELECT expires_at FROM processing_lock WHERE id = 1`).Scan(&existingExpiry)
		if err == nil {
			return &models.ProcessingLockedError{ExpiresAt: fromUnix(existingExpiry).Format(time.RFC3339)}
		}
		if err != sql.ErrNoRows {
			return err
		}

		expiresAt := time.Now().Add(ttl)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO processing_lock (id, agent_id, acquired_at, expires_at)
			VALUES (1, ?, unixepoch(), ?)
		`, agentID, expiresAt.Unix()); err != nil {
			return err
		}

		handle = Handle{kind: kindProcessing, agentID: agentID, expiresAt: expiresAt}
		return nil
	})
	if err != nil {
		return Handle{}, err
	}
	return handle, nil
}

// RenewProcessing extends the processing lock, only if the caller still owns it.
func (m *Manager) RenewProcessing(ctx context.Context, h Handle, ttl time.Duration) (Handle, error) {
	if h.kind != kindProcessing {
		return Handle{}, fmt.Errorf("handle is not a processing lock handle")
	}
	newExpiry := time.Now().Add(ttl)
	err := store.Transact(ctx, m.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE processing_lock SET expires_at = ?
			WHERE id = 1 AND agent_id = ? AND expires_at > unixepoch()
		`, newExpiry.Unix(), h.agentID)
		if err != nil {
			return err
		}
		ra, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if ra == 0 {
			return &models.LockExpiredError{SessionName: "", Operation: "processing"}
		}
		return nil
	})
	if err != nil {
		return Handle{}, err
	}
	h.expiresAt = newExpiry
	return h, nil
}

// ReleaseProcessing deletes row id=1 if it is owned by the handle's agent,
// whether or not it has expired.
func (m *Manager) ReleaseProcessing(ctx context.Context, h Handle) error {
	if h.kind != kindProcessing {
		return fmt.Errorf("handle is not a processing lock handle")
	}
	_, err := m.db.ExecContext(ctx, `DELETE FROM processing_lock WHERE id = 1 AND agent_id = ?`, h.agentID)
	return err
}

// IsProcessingLocked reports whether a live processing lock is currently held.
func (m *Manager) IsProcessingLocked(ctx context.Context) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM processing_lock WHERE id = 1 AND expires_at > unixepoch()`).Scan(&n)
	return n > 0, err
}

// IsProcessingLockedBy reports whether the live processing lock is currently
// held by agentID specifically.
func (m *Manager) IsProcessingLockedBy(ctx context.Context, agentID string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM processing_lock WHERE id = 1 AND agent_id = ? AND expires_at > unixepoch()
	`, agentID).Scan(&n)
	return n > 0, err
}

// ForceReleaseProcessingOwnedBy deletes the processing lock row iff it is
// currently owned by agentID, without requiring a retained Handle.
func (m *Manager) ForceReleaseProcessingOwnedBy(ctx context.Context, agentID string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM processing_lock WHERE id = 1 AND agent_id = ?`, agentID)
	return err
}

// SweepExpired deletes every expired session_locks and processing_lock row,
// independent of any specific key currently being contended for. Used by the
// doctor clean command; the per-acquire opportunistic cleanup above only
// ever clears the one row an acquire is about to contend on.
func (m *Manager) SweepExpired(ctx context.Context) (sessionLocks int, processingLocks int, err error) {
	res, err := m.db.ExecContext(ctx, `DELETE FROM session_locks WHERE expires_at <= unixepoch()`)
	if err != nil {
		return 0, 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	sessionLocks = int(n)

	res, err = m.db.ExecContext(ctx, `DELETE FROM processing_lock WHERE id = 1 AND expires_at <= unixepoch()`)
	if err != nil {
		return sessionLocks, 0, err
	}
	n, err = res.RowsAffected()
	if err != nil {
		return sessionLocks, 0, err
	}
	processingLocks = int(n)

	return sessionLocks, processingLocks, nil
}

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }
