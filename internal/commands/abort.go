package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newAbortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abort <name>",
		Short: "Abandon a workspace and cancel its queue entry, without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaAbort, err)
			}
			reason, _ := cmd.Flags().GetString("reason")
			requestID := resolveRequestID(cmd)

			var sess *models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sess, opErr = o.Abort(cmd.Context(), agentID, requestID, models.SessionName(args[0]), reason)
				return opErr
			}); err != nil {
				return cmdErr(schemaAbort, err)
			}
			return printSuccess(schemaAbort, sess)
		},
	}

	cmd.Flags().String("reason", "", "Reason recorded against the session's final transition")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
