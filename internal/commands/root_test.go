package commands

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/swarmyard/internal/models"
)

func TestExitCodeOf_Nil(t *testing.T) {
	require.Equal(t, 0, ExitCodeOf(nil))
}

func TestExitCodeOf_UnwrapsPrintedError(t *testing.T) {
	err := cmdErr(schemaAdd, &models.NotFoundError{Kind: "session", ID: "foo"})
	require.Equal(t, 2, ExitCodeOf(err))
}

func TestExitCodeOf_UnprintedErrorFallsBackToSystemError(t *testing.T) {
	require.Equal(t, 3, ExitCodeOf(errors.New("boom")))
}

func TestTopLevelConstructors_NameThemselvesAfterTheirNoun(t *testing.T) {
	cases := []struct {
		name string
		cmd  interface{ Name() string }
	}{
		{"add", newAddCmd()},
		{"remove", newRemoveCmd()},
		{"list", newListCmd()},
		{"status", newStatusCmd()},
		{"focus", newFocusCmd()},
		{"sync", newSyncCmd()},
		{"done", newDoneCmd()},
		{"abort", newAbortCmd()},
		{"work", newWorkCmd()},
		{"queue", newQueueCmd()},
		{"agent", newAgentCmd()},
		{"doctor", newDoctorCmd()},
		{"config", newConfigCmd()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.name, tc.cmd.Name())
		})
	}
}

func TestQueueCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newQueueCmd()
	for _, name := range []string{"list", "add", "claim", "complete", "worker"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestAgentCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newAgentCmd()
	for _, name := range []string{"register", "heartbeat", "status", "unregister"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestDoctorCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newDoctorCmd()
	for _, name := range []string{"check", "fix", "integrity", "clean"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}

func TestConfigCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := newConfigCmd()
	for _, name := range []string{"list", "get", "set", "schema"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		require.Equal(t, name, sub.Name())
	}
}
