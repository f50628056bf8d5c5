package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/output"
)

// Execute runs the CLI application and returns the error the top-level
// command produced, if any. Callers map it to a process exit code via
// ExitCodeOf.
func Execute(version string) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "swarmyard",
		Short:         "Multi-agent workspace coordinator: sessions, locks, and a merge queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return printSuccess("swarmyard://version-response/v1", resp{Version: version})
			}
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := app.EnsureConfigDir(); err != nil {
				return err
			}
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}
			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path")
	root.PersistentFlags().StringP("agent", "a", "", "Agent id (default: $AGENT_ID)")
	root.PersistentFlags().String("request-id", "", "Idempotency key for mutating operations (default: $SWARMYARD_REQUEST_ID)")
	root.Flags().BoolP("version", "v", false, "version for swarmyard")

	root.AddCommand(newAddCmd())
	root.AddCommand(newRemoveCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newFocusCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newResolveCmd())
	root.AddCommand(newDoneCmd())
	root.AddCommand(newAbortCmd())
	root.AddCommand(newWorkCmd())
	root.AddCommand(newQueueCmd())
	root.AddCommand(newAgentCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newConfigCmd())

	err := root.Execute()
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) {
			slog.Default().Error("command failed", "error", err.Error())
		}
	}
	return err
}

// ExitCodeOf maps the error Execute returned to the stable exit-code table
// (spec.md §6), unwrapping printedError to recover the original.
func ExitCodeOf(err error) int {
	var pe printedError
	if errors.As(err, &pe) {
		return output.ExitCode(pe.Unwrap())
	}
	if err != nil {
		return 3
	}
	return 0
}
