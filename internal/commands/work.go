package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newWorkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Claim the highest-priority unclaimed tracker issue and spawn a workspace for it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaWork, err)
			}
			requestID := resolveRequestID(cmd)
			metaFlags, _ := cmd.Flags().GetStringToString("meta")
			priority, _ := cmd.Flags().GetInt("priority")
			if !cmd.Flags().Changed("priority") {
				priority = app.EffectiveSettings().CoreDefaultPriority
			}

			var sess *models.Session
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				sess, opErr = o.Work(cmd.Context(), agentID, requestID, priority, metaFlags)
				return opErr
			}); err != nil {
				return cmdErr(schemaWork, err)
			}
			return printSuccess(schemaWork, sess)
		},
	}

	cmd.Flags().Int("priority", 0, "Queue priority to carry if this workspace later goes through done")
	cmd.Flags().StringToString("meta", nil, "Extra metadata key=value pairs")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
