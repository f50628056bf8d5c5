// Package orchestrator composes the session store, lock manager, merge
// queue, agent registry, and external adapters into the named high-level
// intents the CLI boundary dispatches to: add, remove, list, status, focus,
// sync, done, abort, and work (spec.md §6).
package orchestrator

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/dotcommander/swarmyard/internal/adapters"
	"github.com/dotcommander/swarmyard/internal/agent"
	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/lock"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/queue"
	"github.com/dotcommander/swarmyard/internal/store"
)

// Default TTLs for locks acquired by orchestrator flows. Session locks are
// held for the duration of one CLI invocation plus adapter round-trips;
// the processing lock is short-lived and renewed by the queue processor.
const (
	sessionLockTTL    = 2 * time.Minute
	processingLockTTL = 30 * time.Second
)

// Orchestrator wires every core subsystem and the external adapters behind
// one set of high-level operations.
type Orchestrator struct {
	db       *sql.DB
	Sessions *store.SessionStore
	Locks    *lock.Manager
	Queue    *queue.Queue
	Agents   *agent.Registry
	VCS      *adapters.VCS
	Mux      *adapters.Mux
	Tracker  *adapters.Tracker

	workspaceRoot string
	settings      app.Settings
}

// New wires an Orchestrator against already-constructed subsystems.
// workspaceRoot is the directory under which every session's workspace_path
// is allocated (<workspaceRoot>/<session name>).
func New(
	db *sql.DB,
	sessions *store.SessionStore,
	locks *lock.Manager,
	q *queue.Queue,
	agents *agent.Registry,
	vcs *adapters.VCS,
	mux *adapters.Mux,
	tracker *adapters.Tracker,
	workspaceRoot string,
	settings app.Settings,
) *Orchestrator {
	return &Orchestrator{
		db: db, Sessions: sessions, Locks: locks, Queue: q, Agents: agents,
		VCS: vcs, Mux: mux, Tracker: tracker,
		workspaceRoot: workspaceRoot, settings: settings,
	}
}

// workspacePath allocates the on-disk checkout path for a new session name.
func (o *Orchestrator) workspacePath(name models.SessionName) string {
	return filepath.Join(o.workspaceRoot, string(name))
}

// sessionLocator adapts SessionStore to queue.WorkspaceLocator so the merge
// queue's processor can resolve a workspace path without importing store.
type sessionLocator struct{ sessions *store.SessionStore }

func (s sessionLocator) WorkspacePath(ctx context.Context, workspace models.SessionName) (string, error) {
	sess, err := s.sessions.Get(ctx, workspace)
	if err != nil {
		return "", err
	}
	return sess.WorkspacePath, nil
}

// NewProcessor builds a queue.Processor wired to this orchestrator's queue,
// session store, and VCS adapter. runTests may be nil for queue.NoopTestRunner.
func (o *Orchestrator) NewProcessor(agentID string, runTests queue.TestRunner, pollInterval time.Duration) *queue.Processor {
	return queue.NewProcessor(o.Queue, sessionLocator{o.Sessions}, o.Sessions, o.VCS, runTests, agentID, processingLockTTL, pollInterval)
}

// releaseIfHeld releases a freshly-acquired session lock on the failure path
// of a flow, per spec.md §7: "locks held by the failing operation are
// released only if they were freshly acquired in the same call".
func (o *Orchestrator) releaseIfHeld(ctx context.Context, h lock.Handle, acquired bool) {
	if !acquired {
		return
	}
	_ = o.Locks.ReleaseSession(ctx, h)
}
