package orchestrator

import (
	"context"

	"github.com/dotcommander/swarmyard/internal/models"
)

// Done marks a working session ready and submits it to the merge queue. If
// dedupeKey is empty, one is derived from the session name so repeated done
// calls for the same session, before its entry terminates, collapse onto the
// same queue entry regardless of request id (spec.md §8 property 5).
func (o *Orchestrator) Done(ctx context.Context, agentID, requestID string, name models.SessionName, priority int, dedupeKey string) (*models.QueueEntry, error) {
	cached, replayed, err := o.beginIdempotent(ctx, agentID, requestID, "done")
	if err != nil {
		return nil, err
	}
	if replayed {
		var entry models.QueueEntry
		if jsonErr := decodeJSON(cached, &entry); jsonErr != nil {
			return nil, jsonErr
		}
		return &entry, nil
	}

	handle, err := o.Locks.AcquireSession(ctx, name, models.OperationMerge, agentID, sessionLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = o.Locks.ReleaseSession(ctx, handle) }()

	sess, err := o.Sessions.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if sess.State != models.SessionStateReady {
		sess, err = o.Sessions.Transition(ctx, name, models.SessionStateReady, "marked done", agentID)
		if err != nil {
			return nil, err
		}
	}

	if dedupeKey == "" {
		dedupeKey = "done-" + string(name)
	}

	entry, err := o.Queue.Enqueue(ctx, name, models.IssueID(sess.BeadID()), priority, dedupeKey)
	if err != nil {
		return nil, err
	}

	if err := o.completeIdempotent(ctx, agentID, requestID, entry); err != nil {
		return nil, err
	}
	return entry, nil
}
