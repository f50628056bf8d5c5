package commands

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <name>",
		Short: "Rebase a workspace onto trunk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaSync, err)
			}
			requestID := resolveRequestID(cmd)

			var result *orchestrator.SyncResult
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				result, opErr = o.Sync(cmd.Context(), agentID, requestID, models.SessionName(args[0]))
				return opErr
			}); err != nil {
				return cmdErr(schemaSync, err)
			}
			return printSuccess(schemaSync, result)
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <name>",
		Short: "Record how a conflicting file was resolved during a sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			strategy, _ := cmd.Flags().GetString("strategy")
			reason, _ := cmd.Flags().GetString("reason")
			decider, _ := cmd.Flags().GetString("decider")
			if file == "" {
				return cmdErr(schemaResolve, &models.ValidationError{Field: "file", Value: file, Message: "must not be empty"})
			}

			var confidence *float64
			if cmd.Flags().Changed("confidence") {
				v, _ := cmd.Flags().GetFloat64("confidence")
				confidence = &v
			}

			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				return o.ResolveConflict(cmd.Context(), models.SessionName(args[0]), file, strategy, reason, confidence, decider)
			}); err != nil {
				return cmdErr(schemaResolve, err)
			}

			type resp struct {
				Session  string `json:"session"`
				File     string `json:"file"`
				Strategy string `json:"strategy"`
			}
			return printSuccess(schemaResolve, resp{Session: args[0], File: file, Strategy: strategy})
		},
	}

	cmd.Flags().String("file", "", "Path of the resolved file, relative to the workspace root")
	cmd.Flags().String("strategy", "", "Resolution strategy applied")
	cmd.Flags().String("reason", "", "Why this strategy was chosen")
	cmd.Flags().String("decider", "ai", `Who decided the resolution: "ai" or "human"`)
	cmd.Flags().Float64("confidence", 0, "Decider's confidence in the resolution, 0-1")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}
