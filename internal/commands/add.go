package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new workspace and open it for work",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaAdd, err)
			}
			bead, _ := cmd.Flags().GetString("bead")
			metaFlags, _ := cmd.Flags().GetStringToString("meta")
			requestID := resolveRequestID(cmd)

			var sess *models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sess, opErr = o.Add(cmd.Context(), agentID, requestID, models.SessionName(args[0]), models.IssueID(bead), metaFlags)
				return opErr
			}); err != nil {
				return cmdErr(schemaAdd, err)
			}

			type resp struct {
				Session *models.Session `json:"session"`
			}
			return printSuccess(schemaAdd, resp{Session: sess})
		},
	}

	cmd.Flags().String("bead", "", "Tracker issue id to associate with the new workspace")
	cmd.Flags().StringToString("meta", nil, "Extra metadata key=value pairs")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Abandon (if needed) and delete a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaRemove, err)
			}
			reason, _ := cmd.Flags().GetString("reason")
			requestID := resolveRequestID(cmd)

			if runErr := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				return o.Remove(cmd.Context(), agentID, requestID, models.SessionName(args[0]), reason)
			}); runErr != nil {
				return cmdErr(schemaRemove, runErr)
			}

			type resp struct {
				Removed string `json:"removed"`
			}
			return printSuccess(schemaRemove, resp{Removed: args[0]})
		},
	}

	cmd.Flags().String("reason", "", "Reason recorded against the session's final transition")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
