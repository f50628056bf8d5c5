package commands

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAgentCmd_HasShortDescription(t *testing.T) {
	cmd := newAgentCmd()
	require.Equal(t, "agent", cmd.Use)
	require.NotEmpty(t, cmd.Short)
}

func TestAgentRegisterCmd_RequiresAgentID(t *testing.T) {
	t.Setenv("AGENT_ID", "")
	cmd := newAgentRegisterCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestAgentHeartbeatCmd_RequiresAgentID(t *testing.T) {
	t.Setenv("AGENT_ID", "")
	cmd := newAgentHeartbeatCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestAgentUnregisterCmd_RequiresAgentID(t *testing.T) {
	t.Setenv("AGENT_ID", "")
	cmd := newAgentUnregisterCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestAgentStatusCmd_FallsBackToValidationErrorWhenNoAgentResolvable(t *testing.T) {
	t.Setenv("AGENT_ID", "")
	cmd := newAgentStatusCmd()
	err := cmd.RunE(cmd, nil)
	require.Error(t, err)
	require.IsType(t, printedError{}, err)
}

func TestAgentStatusCmd_AcceptsOptionalPositionalArg(t *testing.T) {
	cmd := newAgentStatusCmd()
	require.NoError(t, cmd.Args(cmd, nil))
	require.NoError(t, cmd.Args(cmd, []string{"some-agent"}))
	require.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestAgentRegisterCmd_DefinesMetaFlag(t *testing.T) {
	requireFlagExists(t, newAgentRegisterCmd(), "meta")
}

func TestAgentHeartbeatCmd_DefinesCommandFlag(t *testing.T) {
	requireFlagExists(t, newAgentHeartbeatCmd(), "command")
}
