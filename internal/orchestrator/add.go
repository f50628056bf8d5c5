package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/dotcommander/swarmyard/internal/models"
)

// Add creates a new workspace: it takes the spawn lock for name, shells out
// to the VCS adapter to create the checkout, inserts the session row, opens
// a multiplexer tab rooted at the workspace, and transitions the session
// from created to working. beadID and metadata are optional.
func (o *Orchestrator) Add(ctx context.Context, agentID, requestID string, name models.SessionName, beadID models.IssueID, metadata map[string]string) (*models.Session, error) {
	cached, replayed, err := o.beginIdempotent(ctx, agentID, requestID, "add")
	if err != nil {
		return nil, err
	}
	if replayed {
		var sess models.Session
		if jsonErr := json.Unmarshal(cached, &sess); jsonErr != nil {
			return nil, jsonErr
		}
		return &sess, nil
	}

	if err := name.Validate(); err != nil {
		return nil, err
	}

	handle, err := o.Locks.AcquireSession(ctx, name, models.OperationSpawn, agentID, sessionLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = o.Locks.ReleaseSession(ctx, handle) }()

	path := o.workspacePath(name)
	if _, err := o.VCS.CreateWorkspace(ctx, string(name), path); err != nil {
		return nil, err
	}

	meta := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	meta["agent_id"] = agentID
	if beadID != "" {
		meta["bead_id"] = string(beadID)
	}

	sess, err := o.Sessions.Create(ctx, name, path, meta, nil)
	if err != nil {
		return nil, err
	}

	if err := o.Mux.CreateTab(ctx, string(name), path); err != nil {
		return nil, err
	}

	sess, err = o.Sessions.Transition(ctx, name, models.SessionStateWorking, "workspace created", agentID)
	if err != nil {
		return nil, err
	}

	if err := o.completeIdempotent(ctx, agentID, requestID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Remove tears down a workspace: takes the remove lock, abandons the session
// if it isn't already in a terminal state, closes its multiplexer tab, and
// deletes the row (rejected by the store if still referenced as a parent or
// sitting in a non-terminal queue state).
func (o *Orchestrator) Remove(ctx context.Context, agentID, requestID string, name models.SessionName, reason string) error {
	_, replayed, err := o.beginIdempotent(ctx, agentID, requestID, "remove")
	if err != nil {
		return err
	}
	if replayed {
		return nil
	}

	handle, err := o.Locks.AcquireSession(ctx, name, models.OperationRemove, agentID, sessionLockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = o.Locks.ReleaseSession(ctx, handle) }()

	sess, err := o.Sessions.Get(ctx, name)
	if err != nil {
		return err
	}

	if !sess.State.IsTerminal() {
		if _, err := o.Sessions.Transition(ctx, name, models.SessionStateAbandoned, reason, agentID); err != nil {
			return err
		}
	}

	if err := o.Mux.CloseTab(ctx, string(name)); err != nil {
		return err
	}

	if err := o.Sessions.Delete(ctx, name); err != nil {
		return err
	}

	return o.completeIdempotent(ctx, agentID, requestID, map[string]string{"removed": string(name)})
}
