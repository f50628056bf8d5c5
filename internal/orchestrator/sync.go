package orchestrator

import (
	"context"
	"strings"

	"github.com/dotcommander/swarmyard/internal/models"
)

// SyncResult reports the outcome of rebasing a workspace onto trunk.
type SyncResult struct {
	Session   *models.Session `json:"session"`
	HeadSHA   string          `json:"head_sha,omitempty"`
	Conflicts []string        `json:"conflicts,omitempty"`
}

// Sync rebases a workspace onto trunk. A clean rebase stamps last_synced and,
// if the session was in conflict, returns it to working. A rebase that stops
// on conflicts moves the session to conflict and leaves resolution to the
// agent (the core never resolves content conflicts itself, per spec).
func (o *Orchestrator) Sync(ctx context.Context, agentID, requestID string, name models.SessionName) (*SyncResult, error) {
	cached, replayed, err := o.beginIdempotent(ctx, agentID, requestID, "sync")
	if err != nil {
		return nil, err
	}
	if replayed {
		var result SyncResult
		if jsonErr := decodeJSON(cached, &result); jsonErr != nil {
			return nil, jsonErr
		}
		return &result, nil
	}

	handle, err := o.Locks.AcquireSession(ctx, name, models.OperationSync, agentID, sessionLockTTL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = o.Locks.ReleaseSession(ctx, handle) }()

	sess, err := o.Sessions.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	headSHA, conflicts, err := o.VCS.RebaseOntoTrunk(ctx, sess.WorkspacePath)
	if err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		if sess.State != models.SessionStateConflict {
			sess, err = o.Sessions.Transition(ctx, name, models.SessionStateConflict, "rebase stopped on conflicts: "+strings.Join(conflicts, ", "), agentID)
			if err != nil {
				return nil, err
			}
		}
		result := &SyncResult{Session: sess, HeadSHA: headSHA, Conflicts: conflicts}
		if err := o.completeIdempotent(ctx, agentID, requestID, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := o.Sessions.TouchLastSynced(ctx, name); err != nil {
		return nil, err
	}
	if sess.State == models.SessionStateConflict {
		sess, err = o.Sessions.Transition(ctx, name, models.SessionStateWorking, "conflicts resolved", agentID)
		if err != nil {
			return nil, err
		}
	} else {
		sess, err = o.Sessions.Get(ctx, name)
		if err != nil {
			return nil, err
		}
	}

	result := &SyncResult{Session: sess, HeadSHA: headSHA}
	if err := o.completeIdempotent(ctx, agentID, requestID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ResolveConflict records how one conflicting file was resolved during an
// in-progress sync, without itself re-attempting the rebase.
func (o *Orchestrator) ResolveConflict(ctx context.Context, name models.SessionName, file, strategy, reason string, confidence *float64, decider string) error {
	return o.recordConflictResolution(ctx, name, file, strategy, reason, confidence, decider)
}
