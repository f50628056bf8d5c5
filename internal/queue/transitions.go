package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

// ClaimNext runs the opportunistic recovery sweep, then acquires the
// processing lock and claims the oldest pending entry by
// (priority DESC, added_at ASC, id ASC). Returns nil, nil on an empty queue.
func (q *Queue) ClaimNext(ctx context.Context, agentID string, lockTTL time.Duration) (*models.QueueEntry, error) {
	if _, err := q.RecoverStale(ctx); err != nil {
		return nil, fmt.Errorf("recovery sweep: %w", err)
	}

	handle, err := q.locks.TryAcquireProcessing(ctx, agentID, lockTTL)
	if err != nil {
		return nil, err
	}

	var claimed *models.QueueEntry
	txErr := store.Transact(ctx, q.db, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM queue_entries WHERE status = 'pending'
			ORDER BY priority DESC, added_at ASC, id ASC LIMIT 1
		`).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_entries
			SET status = 'claimed', agent_id = ?, started_at = unixepoch(),
			    attempt_count = attempt_count + 1, state_changed_at = unixepoch(), version = version + 1
			WHERE id = ? AND status = 'pending'
		`, agentID, id); err != nil {
			return err
		}
		if err := emitEvent(ctx, tx, id, models.QueueEventClaimed, map[string]string{"agent_id": agentID}); err != nil {
			return err
		}
		entry, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		claimed = entry
		return nil
	})
	if txErr != nil {
		_ = q.locks.ReleaseProcessing(ctx, handle)
		return nil, txErr
	}
	if claimed == nil {
		if err := q.locks.ReleaseProcessing(ctx, handle); err != nil {
			return nil, err
		}
	}
	return claimed, nil
}

// ReleaseProcessingLock lets the caller give up the processing lock once it
// is done advancing the claimed entry (or on an empty queue).
func (q *Queue) ReleaseProcessingLock(ctx context.Context, agentID string) error {
	return q.locks.ForceReleaseProcessingOwnedBy(ctx, agentID)
}

// Heartbeat renews the processing lock and records a heartbeat event against
// the entry the caller is actively driving.
func (q *Queue) Heartbeat(ctx context.Context, entryID int64, agentID string, ttl time.Duration) error {
	if err := q.requireProcessingLock(ctx, agentID); err != nil {
		return err
	}
	return store.Transact(ctx, q.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE processing_lock SET expires_at = ?
			WHERE id = 1 AND agent_id = ? AND expires_at > unixepoch()
		`, time.Now().Add(ttl).Unix(), agentID)
		if err != nil {
			return err
		}
		if ra, raErr := res.RowsAffected(); raErr != nil {
			return raErr
		} else if ra == 0 {
			return &models.LockExpiredError{Operation: "processing"}
		}
		return emitEvent(ctx, tx, entryID, models.QueueEventHeartbeat, map[string]string{"agent_id": agentID})
	})
}

func (q *Queue) requireProcessingLock(ctx context.Context, agentID string) error {
	locked, err := q.locks.IsProcessingLockedBy(ctx, agentID)
	if err != nil {
		return err
	}
	if !locked {
		return &models.LockExpiredError{Operation: "processing"}
	}
	return nil
}

// edgeMutation lets a transition set extra columns beyond status and
// state_changed_at.
type edgeMutation struct {
	headSHA          *string
	testedAgainstSHA *string
	errorMessage     *string
	completedAt      bool
	bumpRebaseCount  bool
	touchRebasedAt   bool
}

func (q *Queue) fireTransition(ctx context.Context, entryID int64, agentID string, verb models.QueueTransition, eventType models.QueueEventType, details map[string]string, mut edgeMutation) (*models.QueueEntry, error) {
	if err := q.requireProcessingLock(ctx, agentID); err != nil {
		return nil, err
	}

	var out *models.QueueEntry
	err := store.Transact(ctx, q.db, func(tx *sql.Tx) error {
		var status, workspace string
		if err := tx.QueryRowContext(ctx, `SELECT status, workspace FROM queue_entries WHERE id = ?`, entryID).Scan(&status, &workspace); err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Kind: "queue_entry", ID: fmt.Sprintf("%d", entryID)}
			}
			return err
		}
		from := models.QueueEntryStatus(status)
		if !models.CanTransitionQueue(from, verb) {
			return &models.InvalidTransitionError{Entity: "queue_entry", From: status, To: string(verb)}
		}
		_, to, _ := models.QueueEdge(verb)

		query := `UPDATE queue_entries SET status = ?, state_changed_at = unixepoch(), version = version + 1`
		args := []any{string(to)}
		if mut.headSHA != nil {
			query += `, head_sha = ?`
			args = append(args, *mut.headSHA)
		}
		if mut.testedAgainstSHA != nil {
			query += `, tested_against_sha = ?`
			args = append(args, *mut.testedAgainstSHA)
		}
		if mut.errorMessage != nil {
			query += `, error_message = ?`
			args = append(args, *mut.errorMessage)
		}
		if mut.completedAt {
			query += `, completed_at = unixepoch()`
		}
		if mut.bumpRebaseCount {
			query += `, rebase_count = rebase_count + 1`
		}
		if mut.touchRebasedAt {
			query += `, last_rebase_at = unixepoch()`
		}
		query += ` WHERE id = ?`
		args = append(args, entryID)

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET queue_status = ? WHERE name = ?`, string(to), workspace); err != nil {
			return err
		}
		if err := emitEvent(ctx, tx, entryID, eventType, details); err != nil {
			return err
		}
		entry, err := getByID(ctx, tx, entryID)
		if err != nil {
			return err
		}
		out = entry
		return nil
	})
	return out, err
}

func strptr(s string) *string { return &s }

// BeginRebase moves a claimed entry to rebasing.
func (q *Queue) BeginRebase(ctx context.Context, entryID int64, agentID string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionBeginRebase, models.QueueEventTransition, nil, edgeMutation{})
}

// RebaseOK moves a rebasing entry to testing, recording the rebased head SHA.
func (q *Queue) RebaseOK(ctx context.Context, entryID int64, agentID, headSHA string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionRebaseOK, models.QueueEventTransition,
		map[string]string{"head_sha": headSHA},
		edgeMutation{headSHA: strptr(headSHA), bumpRebaseCount: true, touchRebasedAt: true})
}

// RebaseFail moves a rebasing entry to failed_retryable.
func (q *Queue) RebaseFail(ctx context.Context, entryID int64, agentID, reason string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionRebaseFail, models.QueueEventTransition,
		map[string]string{"reason": reason}, edgeMutation{errorMessage: strptr(reason)})
}

// TestsOK moves a testing entry to ready_to_merge, recording the SHA tests ran against.
func (q *Queue) TestsOK(ctx context.Context, entryID int64, agentID, testedAgainstSHA string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionTestsOK, models.QueueEventTransition,
		map[string]string{"tested_against_sha": testedAgainstSHA},
		edgeMutation{testedAgainstSHA: strptr(testedAgainstSHA)})
}

// TestsFail moves a testing entry to failed_retryable.
func (q *Queue) TestsFail(ctx context.Context, entryID int64, agentID, reason string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionTestsFail, models.QueueEventTransition,
		map[string]string{"reason": reason}, edgeMutation{errorMessage: strptr(reason)})
}

// BeginMerge moves a ready_to_merge entry to merging.
func (q *Queue) BeginMerge(ctx context.Context, entryID int64, agentID string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionBeginMerge, models.QueueEventTransition, nil, edgeMutation{})
}

// MergeOK moves a merging entry to merged (terminal), setting head_sha and completed_at.
func (q *Queue) MergeOK(ctx context.Context, entryID int64, agentID, headSHA string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionMergeOK, models.QueueEventMerged,
		map[string]string{"head_sha": headSHA},
		edgeMutation{headSHA: strptr(headSHA), completedAt: true})
}

// MergeFail returns a merging entry to rebasing without incrementing
// attempt_count: trunk-moved contention is not an agent fault.
func (q *Queue) MergeFail(ctx context.Context, entryID int64, agentID, reason string) (*models.QueueEntry, error) {
	return q.fireTransition(ctx, entryID, agentID, models.TransitionMergeFail, models.QueueEventTransition,
		map[string]string{"reason": reason}, edgeMutation{errorMessage: strptr(reason)})
}

// Retry returns a failed_retryable entry to pending; callers must check
// attempt_count < max_attempts first (see GiveUp otherwise).
func (q *Queue) Retry(ctx context.Context, entryID int64, agentID string) (*models.QueueEntry, error) {
	entry, err := q.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.AttemptCount >= entry.MaxAttempts {
		return nil, &models.ValidationError{Field: "attempt_count", Value: fmt.Sprintf("%d", entry.AttemptCount), Message: "at or above max_attempts; use give-up instead"}
	}
	return q.fireTransition(ctx, entryID, agentID, models.TransitionRetry, models.QueueEventRetried, nil, edgeMutation{})
}

// GiveUp moves a failed_retryable entry to failed_terminal once attempt_count
// has reached max_attempts.
func (q *Queue) GiveUp(ctx context.Context, entryID int64, agentID, reason string) (*models.QueueEntry, error) {
	entry, err := q.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.AttemptCount < entry.MaxAttempts {
		return nil, &models.ValidationError{Field: "attempt_count", Value: fmt.Sprintf("%d", entry.AttemptCount), Message: "below max_attempts; use retry instead"}
	}
	return q.fireTransition(ctx, entryID, agentID, models.TransitionGiveUp, models.QueueEventFailed,
		map[string]string{"reason": reason}, edgeMutation{errorMessage: strptr(reason)})
}
