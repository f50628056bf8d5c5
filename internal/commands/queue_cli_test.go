package commands

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/models"
)

func TestParseEntryID_ValidInteger(t *testing.T) {
	id, err := parseEntryID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestParseEntryID_RejectsNonInteger(t *testing.T) {
	_, err := parseEntryID("not-a-number")
	require.Error(t, err)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, "entry_id", ve.Field)
}

func TestJoinConflicts(t *testing.T) {
	require.Equal(t, "", joinConflicts(nil))
	require.Equal(t, "a.go", joinConflicts([]string{"a.go"}))
	require.Equal(t, "a.go, b.go, c.go", joinConflicts([]string{"a.go", "b.go", "c.go"}))
}

func TestQueueAddCmd_DefinesFlags(t *testing.T) {
	cmd := newQueueAddCmd()
	requireFlagExists(t, cmd, "bead")
	requireFlagExists(t, cmd, "priority")
	requireFlagExists(t, cmd, "dedupe-key")
}

func TestQueueWorkerCmd_DefinesPollSecondsFlag(t *testing.T) {
	cmd := newQueueWorkerCmd()
	requireFlagExists(t, cmd, "poll-seconds")
}
