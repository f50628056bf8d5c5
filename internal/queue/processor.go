package queue

import (
	"context"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
	"golang.org/x/sync/errgroup"
)

// WorkspaceLocator resolves a queue entry's workspace name to its on-disk
// checkout path, so the processor can drive the VCS adapter without
// importing the session store directly.
type WorkspaceLocator interface {
	WorkspacePath(ctx context.Context, workspace models.SessionName) (string, error)
}

// SessionCompleter lets the processor carry a merged queue entry's workspace
// to a matching session transition, per the status-vs-state policy decided
// in SPEC_FULL.md: reaching queue merged sets session state=merged and
// status=completed as application policy, not as queue-layer inference.
type SessionCompleter interface {
	Transition(ctx context.Context, name models.SessionName, to models.SessionState, reason, agentID string) (*models.Session, error)
	SetStatus(ctx context.Context, name models.SessionName, status models.SessionStatus) (*models.Session, error)
}

// MergeVCS is the subset of the VCS adapter contract the processor drives
// an entry through: rebase onto trunk, then fast-forward trunk to the
// rebased head.
type MergeVCS interface {
	RebaseOntoTrunk(ctx context.Context, path string) (headSHA string, conflicts []string, err error)
	FastForwardTrunk(ctx context.Context, headSHA string) error
}

// TestRunner validates a rebased workspace before it is allowed to merge.
// spec.md names no concrete test subprocess contract, so the processor
// accepts this as a pluggable hook; NoopTestRunner always succeeds.
type TestRunner func(ctx context.Context, workspacePath string) error

// NoopTestRunner always reports success, for callers with no test step wired.
func NoopTestRunner(_ context.Context, _ string) error { return nil }

// Processor drains the merge queue one entry at a time under the processing
// lock, fanning a renewal heartbeat and the drive-to-completion work under
// one cancellable errgroup per claimed entry (§4.4.4).
type Processor struct {
	queue        *Queue
	locator      WorkspaceLocator
	sessions     SessionCompleter
	vcs          MergeVCS
	runTests     TestRunner
	agentID      string
	lockTTL      time.Duration
	pollInterval time.Duration
}

// NewProcessor wires a Processor. runTests may be nil, in which case
// NoopTestRunner is used.
func NewProcessor(q *Queue, locator WorkspaceLocator, sessions SessionCompleter, vcs MergeVCS, runTests TestRunner, agentID string, lockTTL, pollInterval time.Duration) *Processor {
	if runTests == nil {
		runTests = NoopTestRunner
	}
	return &Processor{
		queue: q, locator: locator, sessions: sessions, vcs: vcs, runTests: runTests,
		agentID: agentID, lockTTL: lockTTL, pollInterval: pollInterval,
	}
}

// Run drains the queue until ctx is cancelled, sleeping pollInterval between
// empty claims. It returns nil on clean cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		advanced, err := p.drainOnce(ctx)
		if err != nil {
			return err
		}
		if advanced {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(p.pollInterval):
		}
	}
}

// drainOnce claims the next pending entry (if any) and drives it one full
// state-machine cycle, renewing the processing lock concurrently so the
// drive doesn't outlive its own claim.
func (p *Processor) drainOnce(ctx context.Context) (advanced bool, err error) {
	entry, err := p.queue.ClaimNext(ctx, p.agentID, p.lockTTL)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, nil
	}
	defer func() { _ = p.queue.ReleaseProcessingLock(ctx, p.agentID) }()

	driveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(driveCtx)
	g.Go(func() error { return p.heartbeatLoop(gctx, entry.ID) })
	g.Go(func() error {
		defer cancel()
		return p.drive(gctx, entry)
	})
	if waitErr := g.Wait(); waitErr != nil && waitErr != context.Canceled {
		return true, waitErr
	}
	return true, nil
}

func (p *Processor) heartbeatLoop(ctx context.Context, entryID int64) error {
	ticker := time.NewTicker(p.lockTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.queue.Heartbeat(ctx, entryID, p.agentID, p.lockTTL); err != nil {
				return err
			}
		}
	}
}

// drive advances entry from its current status through rebase, test, and
// merge, stopping at the first terminal or retryable outcome.
func (p *Processor) drive(ctx context.Context, entry *models.QueueEntry) error {
	path, err := p.locator.WorkspacePath(ctx, models.SessionName(entry.Workspace))
	if err != nil {
		return err
	}

	entry, err = p.queue.BeginRebase(ctx, entry.ID, p.agentID)
	if err != nil {
		return err
	}
	headSHA, conflicts, err := p.vcs.RebaseOntoTrunk(ctx, path)
	if err != nil {
		_, failErr := p.queue.RebaseFail(ctx, entry.ID, p.agentID, err.Error())
		return failErr
	}
	if len(conflicts) > 0 {
		_, failErr := p.queue.RebaseFail(ctx, entry.ID, p.agentID, "conflicts: "+joinConflicts(conflicts))
		return failErr
	}

	entry, err = p.queue.RebaseOK(ctx, entry.ID, p.agentID, headSHA)
	if err != nil {
		return err
	}

	if testErr := p.runTests(ctx, path); testErr != nil {
		_, failErr := p.queue.TestsFail(ctx, entry.ID, p.agentID, testErr.Error())
		return failErr
	}
	entry, err = p.queue.TestsOK(ctx, entry.ID, p.agentID, headSHA)
	if err != nil {
		return err
	}

	entry, err = p.queue.BeginMerge(ctx, entry.ID, p.agentID)
	if err != nil {
		return err
	}
	if ffErr := p.vcs.FastForwardTrunk(ctx, entry.HeadSHA); ffErr != nil {
		_, failErr := p.queue.MergeFail(ctx, entry.ID, p.agentID, ffErr.Error())
		return failErr
	}
	entry, err = p.queue.MergeOK(ctx, entry.ID, p.agentID, entry.HeadSHA)
	if err != nil {
		return err
	}
	return p.completeSessionMerge(ctx, entry.Workspace)
}

// completeSessionMerge advances the owning session to merged/completed once
// its queue entry lands, per the status-vs-state policy in SPEC_FULL.md.
func (p *Processor) completeSessionMerge(ctx context.Context, workspace string) error {
	ws := models.SessionName(workspace)
	if _, err := p.sessions.Transition(ctx, ws, models.SessionStateMerged, "merge queue entry merged", p.agentID); err != nil {
		return err
	}
	_, err := p.sessions.SetStatus(ctx, ws, models.SessionStatusCompleted)
	return err
}

func joinConflicts(files []string) string {
	out := ""
	for i, f := range files {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
