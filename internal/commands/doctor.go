package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/dotcommander/swarmyard/internal/agent"
	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/lock"
	"github.com/dotcommander/swarmyard/internal/queue"
	"github.com/dotcommander/swarmyard/internal/store"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose and repair coordinator state",
	}
	cmd.AddCommand(newDoctorCheckCmd())
	cmd.AddCommand(newDoctorFixCmd())
	cmd.AddCommand(newDoctorIntegrityCmd())
	cmd.AddCommand(newDoctorCleanCmd())
	return cmd
}

func newDoctorCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report configuration and database connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(schemaDoctorCheck, err)
			}

			var (
				dbOK     bool
				dbErr    string
				queryOK  bool
				queryErr string
			)

			db, openErr := store.InitDBWithPath(dbPath)
			if openErr != nil {
				dbErr = openErr.Error()
			} else {
				dbOK = true
				defer func() { _ = db.Close() }()

				var one int
				if scanErr := db.QueryRowContext(cmd.Context(), "SELECT 1").Scan(&one); scanErr != nil {
					queryErr = scanErr.Error()
				} else {
					queryOK = true
				}
			}

			type resp struct {
				DBPath   string `json:"db_path"`
				DBSource string `json:"db_source"`
				DBOK     bool   `json:"db_ok"`
				DBError  string `json:"db_error,omitempty"`
				QueryOK  bool   `json:"query_ok"`
				QueryErr string `json:"query_error,omitempty"`
			}
			return printSuccess(schemaDoctorCheck, resp{
				DBPath: dbPath, DBSource: dbSource,
				DBOK: dbOK, DBError: dbErr,
				QueryOK: queryOK, QueryErr: queryErr,
			})
		},
	}
}

func newDoctorFixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix",
		Short: "Re-apply pending migrations and run the merge queue's stale-entry recovery sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := app.EffectiveSettings()
			staleTTL := time.Duration(settings.QueueStaleTimeoutSeconds) * time.Second

			var migratedFrom, migratedTo int64
			var recovered int
			if err := withOrchestratorDB(func(db *DB) error {
				from, latest, verErr := store.SchemaVersion(db)
				if verErr != nil {
					return verErr
				}
				migratedFrom = from
				if err := store.RunMigrations(db); err != nil {
					return err
				}
				migratedTo = latest

				agents := agent.New(db, defaultLivenessTTL)
				locks := lock.NewManager(db)
				q := queue.New(db, locks, agents, staleTTL)
				n, recoverErr := q.RecoverStale(cmd.Context())
				recovered = n
				return recoverErr
			}); err != nil {
				return cmdErr(schemaDoctorFix, err)
			}

			type resp struct {
				MigratedFrom int64 `json:"migrated_from"`
				MigratedTo   int64 `json:"migrated_to"`
				Recovered    int   `json:"recovered"`
			}
			return printSuccess(schemaDoctorFix, resp{MigratedFrom: migratedFrom, MigratedTo: migratedTo, Recovered: recovered})
		},
	}
}

func newDoctorIntegrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "integrity",
		Short: "Run SQLite's integrity check against the coordinator database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result string
			if err := withOrchestratorDB(func(db *DB) error {
				return db.QueryRowContext(cmd.Context(), "PRAGMA integrity_check").Scan(&result)
			}); err != nil {
				return cmdErr(schemaDoctorIntegrity, err)
			}

			type resp struct {
				Result string `json:"result"`
				OK     bool   `json:"ok"`
			}
			return printSuccess(schemaDoctorIntegrity, resp{Result: result, OK: result == "ok"})
		},
	}
}

func newDoctorCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Sweep expired locks and stale idempotency rows, and reclaim stale agent registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := app.EffectiveSettings()
			retention := time.Duration(settings.IdempotencyRetentionSeconds) * time.Second

			var removed []string
			var sessionLocks, processingLocks, idempotencyRows int
			if err := withAgentRegistry(func(r *agent.Registry) error {
				stale, err := r.ReclaimStale(cmd.Context(), time.Now())
				if err != nil {
					return err
				}
				for _, id := range stale {
					if err := r.Unregister(cmd.Context(), id); err != nil {
						return err
					}
				}
				removed = stale
				return nil
			}); err != nil {
				return cmdErr(schemaDoctorClean, err)
			}

			if err := withOrchestratorDB(func(db *DB) error {
				locks := lock.NewManager(db)
				sl, pl, sweepErr := locks.SweepExpired(cmd.Context())
				if sweepErr != nil {
					return sweepErr
				}
				sessionLocks, processingLocks = sl, pl

				n, pruneErr := store.PruneIdempotency(cmd.Context(), db, retention)
				if pruneErr != nil {
					return pruneErr
				}
				idempotencyRows = n
				return nil
			}); err != nil {
				return cmdErr(schemaDoctorClean, err)
			}

			type resp struct {
				Removed         []string `json:"removed"`
				SessionLocks    int      `json:"session_locks_swept"`
				ProcessingLocks int      `json:"processing_locks_swept"`
				IdempotencyRows int      `json:"idempotency_rows_pruned"`
			}
			return printSuccess(schemaDoctorClean, resp{
				Removed: removed, SessionLocks: sessionLocks,
				ProcessingLocks: processingLocks, IdempotencyRows: idempotencyRows,
			})
		},
	}
}

// withOrchestratorDB opens the database for doctor subcommands that need raw
// access or only a subset of the orchestrator's subsystems.
func withOrchestratorDB(fn func(db *DB) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()
	return fn(db)
}
