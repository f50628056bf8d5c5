package queue

import (
	"context"
	"database/sql"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

var sweptStatuses = []models.QueueEntryStatus{
	models.QueueStatusClaimed,
	models.QueueStatusRebasing,
	models.QueueStatusTesting,
	models.QueueStatusReadyToMerge,
	models.QueueStatusMerging,
}

// RecoverStale scans for entries stuck in a non-terminal, non-pending state
// whose owning agent is unknown or no longer alive and whose
// state_changed_at is older than the configured stale TTL, resetting each to
// pending (if attempts remain) or failed_terminal (otherwise). Runs
// opportunistically at the head of every ClaimNext.
func (q *Queue) RecoverStale(ctx context.Context) (recovered int, err error) {
	candidates, err := q.staleCandidates(ctx)
	if err != nil {
		return 0, err
	}

	for _, c := range candidates {
		alive := false
		if c.agentID != "" && q.liveness != nil {
			alive, err = q.liveness.IsAlive(ctx, c.agentID)
			if err != nil {
				return recovered, err
			}
		}
		if alive {
			continue
		}

		txErr := store.Transact(ctx, q.db, func(tx *sql.Tx) error {
			var attemptCount, maxAttempts int
			var workspace string
			if err := tx.QueryRowContext(ctx, `
				SELECT attempt_count, max_attempts, workspace FROM queue_entries WHERE id = ? AND status = ?
			`, c.id, string(c.status)).Scan(&attemptCount, &maxAttempts, &workspace); err != nil {
				if err == sql.ErrNoRows {
					return nil // already recovered by a concurrent sweep
				}
				return err
			}

			if attemptCount < maxAttempts {
				if _, err := tx.ExecContext(ctx, `
					UPDATE queue_entries
					SET status = 'pending', state_changed_at = unixepoch(), version = version + 1
					WHERE id = ?
				`, c.id); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `UPDATE sessions SET queue_status = 'pending' WHERE name = ?`, workspace); err != nil {
					return err
				}
				return emitEvent(ctx, tx, c.id, models.QueueEventRetried, map[string]string{"reason": "stale claim recovered"})
			}

			if _, err := tx.ExecContext(ctx, `
				UPDATE queue_entries
				SET status = 'failed_terminal', state_changed_at = unixepoch(), version = version + 1
				WHERE id = ?
			`, c.id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE sessions SET queue_status = 'failed_terminal' WHERE name = ?`, workspace); err != nil {
				return err
			}
			return emitEvent(ctx, tx, c.id, models.QueueEventFailed, map[string]string{"reason": "stale claim exceeded max_attempts"})
		})
		if txErr != nil {
			return recovered, txErr
		}
		recovered++
	}
	return recovered, nil
}

type staleCandidate struct {
	id      int64
	status  models.QueueEntryStatus
	agentID string
}

func (q *Queue) staleCandidates(ctx context.Context) ([]staleCandidate, error) {
	placeholders := ""
	args := make([]any, 0, len(sweptStatuses)+1)
	for i, s := range sweptStatuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, string(s))
	}
	args = append(args, int64(q.staleTTL.Seconds()))

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, status, COALESCE(agent_id, '')
		FROM queue_entries
		WHERE status IN (`+placeholders+`)
		  AND state_changed_at + ? < unixepoch()
	`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []staleCandidate
	for rows.Next() {
		var c staleCandidate
		if err := rows.Scan(&c.id, &c.status, &c.agentID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
