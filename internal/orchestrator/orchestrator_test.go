package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/adapters"
	"github.com/dotcommander/swarmyard/internal/agent"
	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/lock"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/queue"
	"github.com/dotcommander/swarmyard/internal/store"
)

// writeFakeBin writes an executable script named name into dir, to be put on
// PATH so the real adapters.VCS/Mux/Tracker shell out to it (mirrors
// internal/adapters' own test style, e.g. TestVCS_RebaseOntoTrunk_ParsesHeadSHAAndConflicts).
func writeFakeBin(t *testing.T, dir, name, script string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
}

// testHarness wires a full Orchestrator against an in-memory database and
// fake VCS/mux/tracker binaries on a scratch PATH.
type testHarness struct {
	o    *Orchestrator
	dir  string
	root string
}

func newHarness(t *testing.T, vcsScript, muxScript, trackerScript string) *testHarness {
	t.Helper()
	bin := t.TempDir()
	if vcsScript != "" {
		writeFakeBin(t, bin, "swarmyard-vcs", vcsScript)
	}
	if muxScript != "" {
		writeFakeBin(t, bin, "swarmyard-mux", muxScript)
	}
	if trackerScript != "" {
		writeFakeBin(t, bin, "swarmyard-tracker", trackerScript)
	}
	t.Setenv("PATH", bin)

	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sessions := store.NewSessionStore(db)
	locks := lock.NewManager(db)
	agents := agent.New(db, time.Minute)
	q := queue.New(db, locks, agents, time.Minute)
	vcs := adapters.NewVCS("")
	mux := adapters.NewMux("")
	tracker := adapters.NewTracker("")

	root := t.TempDir()
	o := New(db, sessions, locks, q, agents, vcs, mux, tracker, root, app.Settings{})
	return &testHarness{o: o, dir: bin, root: root}
}

const okScript = "exit 0\n"

func TestOrchestrator_Add_CreatesWorkingSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	sess, err := h.o.Add(ctx, "agent-A", "", "ws1", "ISSUE-1", map[string]string{"note": "x"})
	require.NoError(t, err)
	require.Equal(t, models.SessionStateWorking, sess.State)
	require.Equal(t, "ISSUE-1", sess.BeadID())
	require.Equal(t, "agent-A", sess.AgentID())
	require.Equal(t, filepath.Join(h.root, "ws1"), sess.WorkspacePath)
}

func TestOrchestrator_Add_IdempotentOnRequestID(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	first, err := h.o.Add(ctx, "agent-A", "req-1", "ws1", "", nil)
	require.NoError(t, err)

	second, err := h.o.Add(ctx, "agent-A", "req-1", "ws1", "", nil)
	require.NoError(t, err)
	require.Equal(t, first.Name, second.Name)
	require.Equal(t, first.ID, second.ID)
}

func TestOrchestrator_Add_RejectsConcurrentSpawnLock(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	handle, err := h.o.Locks.AcquireSession(ctx, "ws1", models.OperationSpawn, "other-agent", time.Minute)
	require.NoError(t, err)
	defer func() { _ = h.o.Locks.ReleaseSession(ctx, handle) }()

	_, err = h.o.Add(ctx, "agent-A", "", "ws1", "", nil)
	require.Error(t, err)
	var lockedErr *models.SessionLockedError
	require.ErrorAs(t, err, &lockedErr)
}

func TestOrchestrator_Remove_DeletesTerminalSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	_, err := h.o.Add(ctx, "agent-A", "", "ws1", "", nil)
	require.NoError(t, err)

	require.NoError(t, h.o.Remove(ctx, "agent-A", "", "ws1", "no longer needed"))

	_, err = h.o.Sessions.Get(ctx, "ws1")
	require.Error(t, err)
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOrchestrator_Sync_CleanRebaseStampsLastSynced(t *testing.T) {
	ctx := context.Background()
	vcsScript := `if [ "$1" = "rebase" ]; then echo "head_sha=c1"; exit 0; fi
exit 0
`
	h := newHarness(t, vcsScript, okScript, okScript)

	_, err := h.o.Add(ctx, "agent-A", "", "ws1", "", nil)
	require.NoError(t, err)

	result, err := h.o.Sync(ctx, "agent-A", "", "ws1")
	require.NoError(t, err)
	require.Equal(t, "c1", result.HeadSHA)
	require.Empty(t, result.Conflicts)
	require.NotNil(t, result.Session.LastSynced)
}

func TestOrchestrator_Sync_ConflictsMoveSessionToConflict(t *testing.T) {
	ctx := context.Background()
	vcsScript := `if [ "$1" = "rebase" ]; then
echo "head_sha=c1"
echo "conflict=a.go"
exit 0
fi
exit 0
`
	h := newHarness(t, vcsScript, okScript, okScript)

	_, err := h.o.Add(ctx, "agent-A", "", "ws1", "", nil)
	require.NoError(t, err)

	result, err := h.o.Sync(ctx, "agent-A", "", "ws1")
	require.NoError(t, err)
	require.Equal(t, []string{"a.go"}, result.Conflicts)
	require.Equal(t, models.SessionStateConflict, result.Session.State)
}

func TestOrchestrator_Done_EnqueuesReadySession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	_, err := h.o.Add(ctx, "agent-A", "", "ws1", "ISSUE-9", nil)
	require.NoError(t, err)
	_, err = h.o.Sessions.Transition(ctx, "ws1", models.SessionStateReady, "ready for review", "agent-A")
	require.NoError(t, err)

	entry, err := h.o.Done(ctx, "agent-A", "", "ws1", 7, "")
	require.NoError(t, err)
	require.Equal(t, "ws1", entry.Workspace)
	require.Equal(t, "ISSUE-9", entry.BeadID)
	require.Equal(t, 7, entry.Priority)
	require.Equal(t, models.QueueStatusPending, entry.Status)
}

func TestOrchestrator_Abort_AbandonsWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, okScript, okScript, okScript)

	_, err := h.o.Add(ctx, "agent-A", "", "ws1", "", nil)
	require.NoError(t, err)

	sess, err := h.o.Abort(ctx, "agent-A", "", "ws1", "giving up")
	require.NoError(t, err)
	require.Equal(t, models.SessionStateAbandoned, sess.State)

	still, err := h.o.Sessions.Get(ctx, "ws1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStateAbandoned, still.State)
}

func TestOrchestrator_Work_SpawnsFromTrackerCandidate(t *testing.T) {
	ctx := context.Background()
	trackerScript := `case "$1" in
list-candidates) echo '[{"id":"ISSUE-42","title":"fix thing","status":"open"}]' ;;
update-status) exit 0 ;;
*) exit 0 ;;
esac
`
	h := newHarness(t, okScript, okScript, trackerScript)

	sess, err := h.o.Work(ctx, "agent-A", "", 5, nil)
	require.NoError(t, err)
	require.Equal(t, "ISSUE-42", sess.BeadID())
	require.Equal(t, models.SessionStateWorking, sess.State)
}

func TestOrchestrator_Work_NoCandidatesReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	trackerScript := `echo '[]'
`
	h := newHarness(t, okScript, okScript, trackerScript)

	_, err := h.o.Work(ctx, "agent-A", "", 5, nil)
	require.Error(t, err)
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
