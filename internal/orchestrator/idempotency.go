package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

// beginIdempotent claims (agentID, requestID, command) against the shared
// idempotency table. An empty requestID disables idempotency entirely
// (replayed is always false). Unlike store.RunIdempotent, this spans
// non-transactional work (subprocess calls to the VCS/mux/tracker
// adapters) between begin and complete, matching RunIdempotent's own
// documented caveat that such side effects re-execute on retry — the
// flows that call this accept that an adapter call may run twice across a
// crash, but never double-write the database.
func (o *Orchestrator) beginIdempotent(ctx context.Context, agentID, requestID, command string) (result []byte, replayed bool, err error) {
	if requestID == "" {
		return nil, false, nil
	}

	_, err = o.db.ExecContext(ctx, `
		INSERT INTO idempotency (agent_id, request_id, command, result_json, created_at)
		VALUES (?, ?, ?, '', unixepoch())
	`, agentID, requestID, command)
	if err == nil {
		return nil, false, nil
	}
	if !store.IsUniqueConstraintErr(err) {
		return nil, false, err
	}

	var existingCommand, resultJSON string
	if qerr := o.db.QueryRowContext(ctx, `
		SELECT command, result_json FROM idempotency WHERE agent_id = ? AND request_id = ?
	`, agentID, requestID).Scan(&existingCommand, &resultJSON); qerr != nil {
		return nil, false, qerr
	}
	if existingCommand != command {
		return nil, false, &models.ValidationError{Field: "request_id", Value: requestID, Message: "already used for a different command"}
	}
	if resultJSON == "" {
		return nil, false, &store.IdempotencyInProgressError{AgentID: agentID, RequestID: requestID, Command: command}
	}
	return []byte(resultJSON), true, nil
}

// completeIdempotent records result against (agentID, requestID). A no-op
// when requestID is empty.
func (o *Orchestrator) completeIdempotent(ctx context.Context, agentID, requestID string, result any) error {
	if requestID == "" {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = o.db.ExecContext(ctx, `
		UPDATE idempotency SET result_json = ? WHERE agent_id = ? AND request_id = ?
	`, string(b), agentID, requestID)
	return err
}
