package commands

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
	"github.com/dotcommander/swarmyard/internal/queue"
)

func parseEntryID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: "entry_id", Value: s, Message: "must be an integer"}
	}
	return id, nil
}

// claimLockTTL is the processing-lock TTL a CLI-driven claim/complete pair
// holds between separate process invocations; queue worker instead renews
// continuously through orchestrator.NewProcessor.
const claimLockTTL = 2 * time.Minute

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and drive the merge queue",
	}
	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueueAddCmd())
	cmd.AddCommand(newQueueClaimCmd())
	cmd.AddCommand(newQueueCompleteCmd())
	cmd.AddCommand(newQueueWorkerCmd())
	return cmd
}

func newQueueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List merge queue entries, optionally filtered by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")

			var entries []*models.QueueEntry
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				entries, opErr = o.Queue.List(cmd.Context(), models.QueueEntryStatus(status))
				return opErr
			}); err != nil {
				return cmdErr(schemaQueueList, err)
			}
			return printSuccessArray(schemaQueueList, entries)
		},
	}
	cmd.Flags().String("status", "", "Filter by queue entry status")
	return cmd
}

func newQueueAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <workspace>",
		Short: "Submit a workspace to the merge queue directly, without changing its session state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bead, _ := cmd.Flags().GetString("bead")
			dedupeKey, _ := cmd.Flags().GetString("dedupe-key")
			priority, _ := cmd.Flags().GetInt("priority")
			if !cmd.Flags().Changed("priority") {
				priority = app.EffectiveSettings().CoreDefaultPriority
			}

			var entry *models.QueueEntry
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				entry, opErr = o.Queue.Enqueue(cmd.Context(), models.SessionName(args[0]), models.IssueID(bead), priority, dedupeKey)
				return opErr
			}); err != nil {
				return cmdErr(schemaQueueAdd, err)
			}
			return printSuccess(schemaQueueAdd, entry)
		},
	}
	cmd.Flags().String("bead", "", "Tracker issue id associated with the entry")
	cmd.Flags().Int("priority", 0, "Queue priority (default: core.default_priority)")
	cmd.Flags().String("dedupe-key", "", "Idempotent-enqueue key")
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newQueueClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the next pending queue entry under the processing lock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaQueueClaim, err)
			}

			var entry *models.QueueEntry
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				entry, opErr = o.Queue.ClaimNext(cmd.Context(), agentID, claimLockTTL)
				return opErr
			}); err != nil {
				return cmdErr(schemaQueueClaim, err)
			}
			if entry == nil {
				type resp struct {
					Claimed bool `json:"claimed"`
				}
				return printSuccess(schemaQueueClaim, resp{Claimed: false})
			}
			return printSuccess(schemaQueueClaim, entry)
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

func newQueueCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <entry-id>",
		Short: "Drive a claimed entry through rebase, test, and merge to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaQueueComplete, err)
			}
			entryID, parseErr := parseEntryID(args[0])
			if parseErr != nil {
				return cmdErr(schemaQueueComplete, parseErr)
			}

			var entry *models.QueueEntry
			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				var opErr error
				entry, opErr = driveEntry(cmd.Context(), o, entryID, agentID)
				return opErr
			}); err != nil {
				return cmdErr(schemaQueueComplete, err)
			}
			return printSuccess(schemaQueueComplete, entry)
		},
	}
	cmd.Annotations = map[string]string{"mutates": "true"}
	return cmd
}

// driveEntry runs one already-claimed entry through the same rebase/test/merge
// status sequence queue.Processor uses, synchronously and without a heartbeat
// loop: a single CLI invocation is expected to hold the processing lock for
// the whole call, unlike the long-running worker loop. The testing step runs
// no test command; it records TestsOK against the rebased head.
func driveEntry(ctx context.Context, o *orchestrator.Orchestrator, entryID int64, agentID string) (*models.QueueEntry, error) {
	entry, err := o.Queue.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	sess, err := o.Sessions.Get(ctx, models.SessionName(entry.Workspace))
	if err != nil {
		return nil, err
	}
	path := sess.WorkspacePath

	switch entry.Status {
	case models.QueueStatusClaimed:
		entry, err = o.Queue.BeginRebase(ctx, entry.ID, agentID)
		if err != nil {
			return nil, err
		}
		fallthrough
	case models.QueueStatusRebasing:
		headSHA, conflicts, rebaseErr := o.VCS.RebaseOntoTrunk(ctx, path)
		if rebaseErr != nil {
			return o.Queue.RebaseFail(ctx, entry.ID, agentID, rebaseErr.Error())
		}
		if len(conflicts) > 0 {
			return o.Queue.RebaseFail(ctx, entry.ID, agentID, "conflicts: "+joinConflicts(conflicts))
		}
		entry, err = o.Queue.RebaseOK(ctx, entry.ID, agentID, headSHA)
		if err != nil {
			return nil, err
		}
		fallthrough
	case models.QueueStatusTesting:
		entry, err = o.Queue.TestsOK(ctx, entry.ID, agentID, entry.HeadSHA)
		if err != nil {
			return nil, err
		}
		fallthrough
	case models.QueueStatusReadyToMerge:
		entry, err = o.Queue.BeginMerge(ctx, entry.ID, agentID)
		if err != nil {
			return nil, err
		}
		fallthrough
	case models.QueueStatusMerging:
		if ffErr := o.VCS.FastForwardTrunk(ctx, entry.HeadSHA); ffErr != nil {
			return o.Queue.MergeFail(ctx, entry.ID, agentID, ffErr.Error())
		}
		merged, mergeErr := o.Queue.MergeOK(ctx, entry.ID, agentID, entry.HeadSHA)
		if mergeErr != nil {
			return nil, mergeErr
		}
		if err := completeSessionMerge(ctx, o, merged.Workspace, agentID); err != nil {
			return nil, err
		}
		return merged, nil
	default:
		return entry, nil
	}
}

// completeSessionMerge mirrors queue.Processor's post-merge session
// transition for the synchronous CLI drive path.
func completeSessionMerge(ctx context.Context, o *orchestrator.Orchestrator, workspace, agentID string) error {
	ws := models.SessionName(workspace)
	if _, err := o.Sessions.Transition(ctx, ws, models.SessionStateMerged, "merge queue entry merged", agentID); err != nil {
		return err
	}
	_, err := o.Sessions.SetStatus(ctx, ws, models.SessionStatusCompleted)
	return err
}

func joinConflicts(files []string) string {
	out := ""
	for i, f := range files {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}

func newQueueWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the merge queue's drain loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agentID, err := requireAgentID(cmd)
			if err != nil {
				return cmdErr(schemaQueueWorker, err)
			}
			pollSeconds, _ := cmd.Flags().GetInt("poll-seconds")
			if pollSeconds <= 0 {
				pollSeconds = 5
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := withOrchestrator(func(o *orchestrator.Orchestrator) error {
				proc := o.NewProcessor(agentID, queue.NoopTestRunner, time.Duration(pollSeconds)*time.Second)
				return proc.Run(ctx)
			}); err != nil {
				return cmdErr(schemaQueueWorker, err)
			}

			type resp struct {
				Stopped string `json:"stopped"`
			}
			return printSuccess(schemaQueueWorker, resp{Stopped: "interrupted"})
		},
	}
	cmd.Flags().Int("poll-seconds", 5, "Seconds to sleep between empty claim attempts")
	return cmd
}
