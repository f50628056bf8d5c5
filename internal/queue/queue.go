// Package queue implements the merge queue: a priority FIFO with its own
// landing-protocol state machine, a single-writer claim protocol built on
// the processing lock, an append-only event log, and a crash-recovery sweep.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/swarmyard/internal/lock"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

// LivenessChecker reports whether an agent is still alive, consulted by the
// crash-recovery sweep. Implemented by internal/agent.Registry.
type LivenessChecker interface {
	IsAlive(ctx context.Context, agentID string) (bool, error)
}

// Queue composes the persistence layer and lock manager into the merge
// queue's submission, claim, advancement, and recovery operations.
type Queue struct {
	db       *sql.DB
	locks    *lock.Manager
	liveness LivenessChecker
	staleTTL time.Duration
}

// New wires a Queue against db, the shared lock manager, and a liveness
// checker used by the recovery sweep.
func New(db *sql.DB, locks *lock.Manager, liveness LivenessChecker, staleTTL time.Duration) *Queue {
	return &Queue{db: db, locks: locks, liveness: liveness, staleTTL: staleTTL}
}

// Enqueue inserts a pending entry for workspace, or returns the existing
// non-terminal entry sharing dedupeKey (idempotent submission).
func (q *Queue) Enqueue(ctx context.Context, workspace models.SessionName, bead models.IssueID, priority int, dedupeKey string) (*models.QueueEntry, error) {
	var entry *models.QueueEntry
	err := store.Transact(ctx, q.db, func(tx *sql.Tx) error {
		if dedupeKey != "" {
			existing, findErr := findNonTerminalByDedupeKey(ctx, tx, dedupeKey)
			if findErr != nil {
				return findErr
			}
			if existing != nil {
				entry = existing
				return nil
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO queue_entries (
				workspace, bead_id, priority, status, added_at, dedupe_key,
				workspace_state, state_changed_at, attempt_count, version
			) VALUES (?, ?, ?, 'pending', unixepoch(), ?, 'created', unixepoch(), 0, 1)
		`, string(workspace), nullableString(string(bead)), priority, nullableString(dedupeKey))
		if err != nil {
			if store.IsUniqueConstraintErr(err) && dedupeKey != "" {
				// A concurrent enqueue with the same dedupe_key won the race.
				existing, findErr := findNonTerminalByDedupeKey(ctx, tx, dedupeKey)
				if findErr != nil {
					return findErr
				}
				if existing != nil {
					entry = existing
					return nil
				}
				// The unique index slot is held by a terminal entry: the
				// caller needs a fresh dedupe_key, not a raw driver error.
				terminal, findErr := findByDedupeKey(ctx, tx, dedupeKey)
				if findErr != nil {
					return findErr
				}
				if terminal != nil {
					return &models.DedupeKeyCollisionError{DedupeKey: dedupeKey, EntryID: terminal.ID}
				}
			}
			return err
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return idErr
		}
		if err := emitEvent(ctx, tx, id, models.QueueEventCreated, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET queue_status = 'pending' WHERE name = ?`, string(workspace)); err != nil {
			return err
		}
		loaded, loadErr := getByID(ctx, tx, id)
		if loadErr != nil {
			return loadErr
		}
		entry = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get loads one queue entry by id.
func (q *Queue) Get(ctx context.Context, entryID int64) (*models.QueueEntry, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+queueEntryColumns()+` FROM queue_entries WHERE id = ?`, entryID)
	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "queue_entry", ID: fmt.Sprintf("%d", entryID)}
	}
	return entry, err
}

// List returns queue entries, optionally narrowed to one status, ordered by
// the dispatch order (priority desc, added_at asc, id asc).
func (q *Queue) List(ctx context.Context, status models.QueueEntryStatus) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueEntryColumns() + ` FROM queue_entries`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY priority DESC, added_at ASC, id ASC`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.QueueEntry
	for rows.Next() {
		entry, scanErr := scanQueueEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Cancel transitions entry to cancelled from any non-terminal state and
// force-releases any session lock held for the entry's workspace merge.
func (q *Queue) Cancel(ctx context.Context, entryID int64, reason string) error {
	var workspace models.SessionName
	err := store.Transact(ctx, q.db, func(tx *sql.Tx) error {
		var status, ws string
		if err := tx.QueryRowContext(ctx, `SELECT status, workspace FROM queue_entries WHERE id = ?`, entryID).Scan(&status, &ws); err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Kind: "queue_entry", ID: fmt.Sprintf("%d", entryID)}
			}
			return err
		}
		workspace = models.SessionName(ws)
		current := models.QueueEntryStatus(status)
		if current.IsTerminal() {
			return &models.InvalidTransitionError{Entity: "queue_entry", From: status, To: string(models.QueueStatusCancelled)}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_entries
			SET status = 'cancelled', state_changed_at = unixepoch(), version = version + 1
			WHERE id = ?
		`, entryID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET queue_status = 'cancelled' WHERE name = ?`, ws); err != nil {
			return err
		}
		return emitEvent(ctx, tx, entryID, models.QueueEventCancelled, map[string]string{"reason": reason})
	})
	if err != nil {
		return err
	}
	return q.locks.ForceReleaseSession(ctx, workspace, models.OperationMerge)
}

func findByDedupeKey(ctx context.Context, tx *sql.Tx, dedupeKey string) (*models.QueueEntry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+queueEntryColumns()+` FROM queue_entries WHERE dedupe_key = ?`, dedupeKey)
	entry, err := scanQueueEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

func findNonTerminalByDedupeKey(ctx context.Context, tx *sql.Tx, dedupeKey string) (*models.QueueEntry, error) {
	entry, err := findByDedupeKey(ctx, tx, dedupeKey)
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.Status.IsTerminal() {
		return nil, nil
	}
	return entry, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
