package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newDoneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "done <name>",
		Short: "Mark a workspace ready and submit it to the merge queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaDone, err)
			}
			requestID := resolveRequestID(cmd)
			dedupeKey, _ := cmd.Flags().GetString("dedupe-key")
			priority, _ := cmd.Flags().GetInt("priority")
			if !cmd.Flags().Changed("priority") {
				priority = app.EffectiveSettings().CoreDefaultPriority
			}

			var entry *models.QueueEntry
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				entry, opErr = o.Done(cmd.Context(), agentID, requestID, models.SessionName(args[0]), priority, dedupeKey)
				return opErr
			}); err != nil {
				return cmdErr(schemaDone, err)
			}
			return printSuccess(schemaDone, entry)
		},
	}

	cmd.Flags().Int("priority", 0, "Queue priority (default: core.default_priority)")
	cmd.Flags().String("dedupe-key", "", "Idempotent-enqueue key (default: derived from the workspace name)")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
