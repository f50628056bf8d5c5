package orchestrator

import (
	"context"

	"github.com/dotcommander/swarmyard/internal/models"
)

// Abort abandons a session without deleting its workspace or tab: it cancels
// any non-terminal merge-queue entry for the session, then transitions the
// session to abandoned. Unlike Remove, the workspace is left for inspection.
func (o *Orchestrator) Abort(ctx context.Context, agentID, requestID string, name models.SessionName, reason string) (*models.Session, error) {
	cached, replayed, err := o.beginIdempotent(ctx, agentID, requestID, "abort")
	if err != nil {
		return nil, err
	}
	if replayed {
		var sess models.Session
		if jsonErr := decodeJSON(cached, &sess); jsonErr != nil {
			return nil, jsonErr
		}
		return &sess, nil
	}

	handle, err := o.Locks.AcquireSession(ctx, name, models.OperationModify, agentID, sessionLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = o.Locks.ReleaseSession(ctx, handle) }()

	sess, err := o.Sessions.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if sess.QueueStatus != nil && !sess.QueueStatus.IsTerminal() {
		entry, findErr := o.findQueueEntryForWorkspace(ctx, name)
		if findErr != nil {
			return nil, findErr
		}
		if entry != nil {
			if cancelErr := o.Queue.Cancel(ctx, entry.ID, "session aborted: "+reason); cancelErr != nil {
				return nil, cancelErr
			}
		}
	}

	if !sess.State.IsTerminal() {
		sess, err = o.Sessions.Transition(ctx, name, models.SessionStateAbandoned, reason, agentID)
		if err != nil {
			return nil, err
		}
	}

	if err := o.completeIdempotent(ctx, agentID, requestID, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// findQueueEntryForWorkspace returns the newest non-terminal queue entry for
// workspace, or nil if none exists.
func (o *Orchestrator) findQueueEntryForWorkspace(ctx context.Context, workspace models.SessionName) (*models.QueueEntry, error) {
	for _, status := range []models.QueueEntryStatus{
		models.QueueStatusPending, models.QueueStatusClaimed, models.QueueStatusRebasing,
		models.QueueStatusTesting, models.QueueStatusReadyToMerge, models.QueueStatusMerging,
		models.QueueStatusFailedRetryable,
	} {
		entries, err := o.Queue.List(ctx, status)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Workspace == string(workspace) {
				return e, nil
			}
		}
	}
	return nil, nil
}
