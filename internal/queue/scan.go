package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// queueEntryColumns is the canonical SELECT list backing scanQueueEntry.
func queueEntryColumns() string {
	return `
		id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
		error_message, agent_id, dedupe_key, workspace_state, previous_state,
		state_changed_at, head_sha, tested_against_sha, attempt_count, max_attempts,
		rebase_count, last_rebase_at, version
	`
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	var e models.QueueEntry
	var beadID, errorMessage, agentID, dedupeKey, previousState, headSHA, testedAgainstSHA sql.NullString
	var startedAt, completedAt, lastRebaseAt sql.NullInt64
	var addedAt, stateChangedAt int64

	if err := row.Scan(
		&e.ID, &e.Workspace, &beadID, &e.Priority, &e.Status, &addedAt, &startedAt, &completedAt,
		&errorMessage, &agentID, &dedupeKey, &e.WorkspaceState, &previousState,
		&stateChangedAt, &headSHA, &testedAgainstSHA, &e.AttemptCount, &e.MaxAttempts,
		&e.RebaseCount, &lastRebaseAt, &e.Version,
	); err != nil {
		return nil, err
	}

	e.AddedAt = fromUnix(addedAt)
	e.StateChangedAt = fromUnix(stateChangedAt)
	e.StartedAt = fromUnixNull(startedAt)
	e.CompletedAt = fromUnixNull(completedAt)
	e.LastRebaseAt = fromUnixNull(lastRebaseAt)
	e.BeadID = beadID.String
	e.ErrorMessage = errorMessage.String
	e.AgentID = agentID.String
	e.DedupeKey = dedupeKey.String
	e.HeadSHA = headSHA.String
	e.TestedAgainstSHA = testedAgainstSHA.String
	if previousState.Valid {
		e.PreviousState = models.SessionState(previousState.String)
	}
	return &e, nil
}

func getByID(ctx context.Context, tx *sql.Tx, id int64) (*models.QueueEntry, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+queueEntryColumns()+` FROM queue_entries WHERE id = ?`, id)
	return scanQueueEntry(row)
}

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func fromUnixNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// emitEvent appends one queue_events row within the caller's transaction.
func emitEvent(ctx context.Context, tx *sql.Tx, queueID int64, eventType models.QueueEventType, details map[string]string) error {
	var detailsJSON any
	if len(details) > 0 {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		detailsJSON = string(b)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO queue_events (queue_id, event_type, details_json, created_at)
		VALUES (?, ?, ?, unixepoch())
	`, queueID, string(eventType), detailsJSON)
	return err
}

// Events returns every queue_events row for entryID in ascending id order.
func (q *Queue) Events(ctx context.Context, entryID int64) ([]*models.QueueEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, queue_id, event_type, details_json, created_at
		FROM queue_events WHERE queue_id = ? ORDER BY id ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.QueueEvent
	for rows.Next() {
		var ev models.QueueEvent
		var detailsJSON sql.NullString
		var createdAt int64
		if err := rows.Scan(&ev.ID, &ev.QueueID, &ev.EventType, &detailsJSON, &createdAt); err != nil {
			return nil, err
		}
		ev.DetailsJSON = detailsJSON.String
		ev.CreatedAt = fromUnix(createdAt)
		out = append(out, &ev)
	}
	return out, rows.Err()
}
