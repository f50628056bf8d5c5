package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbortCmd_RequiresAgentID(t *testing.T) {
	t.Setenv("AGENT_ID", "")
	cmd := newAbortCmd()
	err := cmd.RunE(cmd, []string{"my-workspace"})
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestAbortCmd_DefinesReasonFlag(t *testing.T) {
	requireFlagExists(t, newAbortCmd(), "reason")
}
