package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := store.InitDBWithPath(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db)
}

func TestManager_AcquireSessionBusy(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	h1, err := m.AcquireSession(ctx, "sess-a", models.OperationSync, "agent-1", time.Minute)
	require.NoError(t, err)
	require.NotZero(t, h1.ExpiresAt())

	_, err = m.AcquireSession(ctx, "sess-a", models.OperationSync, "agent-2", time.Minute)
	require.Error(t, err)
	var busy *models.SessionLockedError
	require.ErrorAs(t, err, &busy)

	locked, err := m.IsSessionLocked(ctx, "sess-a", models.OperationSync)
	require.NoError(t, err)
	require.True(t, locked)
}

func TestManager_AcquireSessionDifferentOperationsIndependent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AcquireSession(ctx, "sess-b", models.OperationSync, "agent-1", time.Minute)
	require.NoError(t, err)

	_, err = m.AcquireSession(ctx, "sess-b", models.OperationMerge, "agent-2", time.Minute)
	require.NoError(t, err)
}

func TestManager_ReleaseSessionThenReacquire(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	h, err := m.AcquireSession(ctx, "sess-c", models.OperationModify, "agent-1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, m.ReleaseSession(ctx, h))

	locked, err := m.IsSessionLocked(ctx, "sess-c", models.OperationModify)
	require.NoError(t, err)
	require.False(t, locked)

	_, err = m.AcquireSession(ctx, "sess-c", models.OperationModify, "agent-2", time.Minute)
	require.NoError(t, err)
}

func TestManager_AcquireSessionReclaimsExpiredRow(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AcquireSession(ctx, "sess-d", models.OperationRemove, "agent-1", -time.Second)
	require.NoError(t, err)

	h2, err := m.AcquireSession(ctx, "sess-d", models.OperationRemove, "agent-2", time.Minute)
	require.NoError(t, err)
	require.NotZero(t, h2.ExpiresAt())
}

func TestManager_RenewSessionExtendsOwnedLock(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	h, err := m.AcquireSession(ctx, "sess-e", models.OperationSpawn, "agent-1", time.Second)
	require.NoError(t, err)

	renewed, err := m.RenewSession(ctx, h, time.Minute)
	require.NoError(t, err)
	require.True(t, renewed.ExpiresAt().After(h.ExpiresAt()))
}

func TestManager_RenewSessionFailsIfNotOwner(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	h, err := m.AcquireSession(ctx, "sess-f", models.OperationSync, "agent-1", time.Minute)
	require.NoError(t, err)

	stolen := h
	stolen.agentID = "agent-2"
	_, err = m.RenewSession(ctx, stolen, time.Minute)
	require.Error(t, err)
	var expired *models.LockExpiredError
	require.ErrorAs(t, err, &expired)
}

func TestManager_ProcessingLockSingleton(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	h1, err := m.TryAcquireProcessing(ctx, "agent-1", time.Minute)
	require.NoError(t, err)

	_, err = m.TryAcquireProcessing(ctx, "agent-2", time.Minute)
	require.Error(t, err)
	var busy *models.ProcessingLockedError
	require.ErrorAs(t, err, &busy)

	require.NoError(t, m.ReleaseProcessing(ctx, h1))

	_, err = m.TryAcquireProcessing(ctx, "agent-2", time.Minute)
	require.NoError(t, err)
}

func TestManager_ProcessingLockReclaimsExpired(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.TryAcquireProcessing(ctx, "agent-1", -time.Second)
	require.NoError(t, err)

	locked, err := m.IsProcessingLocked(ctx)
	require.NoError(t, err)
	require.False(t, locked)

	_, err = m.TryAcquireProcessing(ctx, "agent-2", time.Minute)
	require.NoError(t, err)
}
