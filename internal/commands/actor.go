package commands

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// resolveAgentID resolves the calling agent's id: the --agent flag, then
// $AGENT_ID (the env var the orchestrator itself sets on spawned child
// processes, per spec.md §6).
func resolveAgentID(cmd *cobra.Command) string {
	if v, err := cmd.Flags().GetString("agent"); err == nil && v != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(os.Getenv("AGENT_ID"))
}

func requireAgentID(cmd *cobra.Command) (string, error) {
	id := resolveAgentID(cmd)
	if id == "" {
		return "", errors.New("agent id is required (set --agent or AGENT_ID)")
	}
	return id, nil
}
