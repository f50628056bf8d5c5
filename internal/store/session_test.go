package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/models"
)

func newTestSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	db, err := InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSessionStore(db)
}

func TestSessionStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	sess, err := s.Create(ctx, "feature-a", "/work/feature-a", map[string]string{"bead_id": "bead-1"}, nil)
	require.NoError(t, err)
	require.Equal(t, models.SessionName("feature-a"), sess.Name)
	require.Equal(t, models.SessionStateCreated, sess.State)
	require.Equal(t, models.SessionStatusCreating, sess.Status)
	require.Equal(t, "bead-1", sess.BeadID())
	require.Equal(t, 1, sess.Version)

	got, err := s.Get(ctx, "feature-a")
	require.NoError(t, err)
	require.Equal(t, sess.ID, got.ID)
}

func TestSessionStore_CreateDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "dup", "/work/dup", nil, nil)
	require.NoError(t, err)

	_, err = s.Create(ctx, "dup", "/work/dup2", nil, nil)
	require.Error(t, err)
	var nameInUse *models.NameInUseError
	require.ErrorAs(t, err, &nameInUse)
}

func TestSessionStore_CreateInvalidName(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "-bad", "/work/bad", nil, nil)
	require.Error(t, err)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSessionStore_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Get(ctx, "missing")
	require.Error(t, err)
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestSessionStore_TransitionAllowedEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "work-a", "/work/work-a", nil, nil)
	require.NoError(t, err)

	sess, err := s.Transition(ctx, "work-a", models.SessionStateWorking, "agent picked up", "agent-1")
	require.NoError(t, err)
	require.Equal(t, models.SessionStateWorking, sess.State)
	require.Equal(t, 2, sess.Version)
}

func TestSessionStore_TransitionRejectsIllegalEdge(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "work-b", "/work/work-b", nil, nil)
	require.NoError(t, err)

	// created -> merged is not a legal edge.
	_, err = s.Transition(ctx, "work-b", models.SessionStateMerged, "", "agent-1")
	require.Error(t, err)
	var inv *models.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
}

func TestSessionStore_TransitionToMergedSetsLastSynced(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "work-c", "/work/work-c", nil, nil)
	require.NoError(t, err)
	_, err = s.Transition(ctx, "work-c", models.SessionStateWorking, "", "agent-1")
	require.NoError(t, err)
	_, err = s.Transition(ctx, "work-c", models.SessionStateReady, "", "agent-1")
	require.NoError(t, err)

	sess, err := s.Transition(ctx, "work-c", models.SessionStateMerged, "landed", "agent-1")
	require.NoError(t, err)
	require.NotNil(t, sess.LastSynced)
}

func TestSessionStore_SetMetadataMerges(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "meta-a", "/work/meta-a", map[string]string{"bead_id": "bead-9"}, nil)
	require.NoError(t, err)

	sess, err := s.SetMetadata(ctx, "meta-a", "agent_id", "agent-7")
	require.NoError(t, err)
	require.Equal(t, "bead-9", sess.BeadID())
	require.Equal(t, "agent-7", sess.AgentID())
}

func TestSessionStore_ListFiltersByMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "bead-x", "/work/x", map[string]string{"bead_id": "b-1"}, nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "bead-y", "/work/y", map[string]string{"bead_id": "b-2"}, nil)
	require.NoError(t, err)

	found, err := s.List(ctx, models.SessionFilter{MetadataBeadID: "b-1"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, models.SessionName("bead-x"), found[0].Name)
}

func TestSessionStore_SetParentRejectsCycle(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	parent, err := s.Create(ctx, "parent-s", "/work/parent", nil, nil)
	require.NoError(t, err)
	child, err := s.Create(ctx, "child-s", "/work/child", nil, &parent.ID)
	require.NoError(t, err)

	err = s.SetParent(ctx, "parent-s", &child.ID)
	require.Error(t, err)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestSessionStore_DeleteRejectsWhenReferencedAsParent(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	parent, err := s.Create(ctx, "parent-d", "/work/parent-d", nil, nil)
	require.NoError(t, err)
	_, err = s.Create(ctx, "child-d", "/work/child-d", nil, &parent.ID)
	require.NoError(t, err)

	err = s.Delete(ctx, "parent-d")
	require.Error(t, err)
}

func TestSessionStore_DeleteSucceedsWhenUnreferenced(t *testing.T) {
	ctx := context.Background()
	s := newTestSessionStore(t)

	_, err := s.Create(ctx, "lonely", "/work/lonely", nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "lonely"))

	_, err = s.Get(ctx, "lonely")
	require.Error(t, err)
}
