package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workspaces, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			state, _ := cmd.Flags().GetString("state")
			bead, _ := cmd.Flags().GetString("bead")
			agent, _ := cmd.Flags().GetString("agent-filter")

			filter := models.SessionFilter{
				Status:         models.SessionStatus(status),
				State:          models.SessionState(state),
				MetadataBeadID: bead,
				MetadataAgent:  agent,
			}

			var sessions []*models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sessions, opErr = o.List(cmd.Context(), filter)
				return opErr
			}); err != nil {
				return cmdErr(schemaList, err)
			}
			return printSuccessArray(schemaList, sessions)
		},
	}

	cmd.Flags().String("status", "", "Filter by operational status")
	cmd.Flags().String("state", "", "Filter by workflow state")
	cmd.Flags().String("bead", "", "Filter by associated tracker issue id")
	cmd.Flags().String("agent-filter", "", "Filter by owning agent id")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <name>",
		Short: "Show one workspace's full record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sess *models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sess, opErr = o.Status(cmd.Context(), models.SessionName(args[0]))
				return opErr
			}); err != nil {
				return cmdErr(schemaStatus, err)
			}
			return printSuccess(schemaStatus, sess)
		},
	}
}

func newFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus <name>",
		Short: "Bring a workspace's multiplexer tab into view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sess *models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sess, opErr = o.Focus(cmd.Context(), models.SessionName(args[0]))
				return opErr
			}); err != nil {
				return cmdErr(schemaFocus, err)
			}
			return printSuccess(schemaFocus, sess)
		},
	}
}
