package commands

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/dotcommander/swarmyard/internal/adapters"
	"github.com/dotcommander/swarmyard/internal/agent"
	"github.com/dotcommander/swarmyard/internal/app"
	"github.com/dotcommander/swarmyard/internal/lock"
	"github.com/dotcommander/swarmyard/internal/orchestrator"
	"github.com/dotcommander/swarmyard/internal/queue"
	"github.com/dotcommander/swarmyard/internal/store"
)

// DB is an alias so command code doesn't need to import database/sql directly.
type DB = sql.DB

// defaultLivenessTTL bounds how long an agent is considered alive without a
// heartbeat; spec.md names no config key for it, so it is a fixed constant
// rather than another knob under core./queue./recovery.
const defaultLivenessTTL = 2 * time.Minute

// defaultWorkspaceRoot is where Add allocates new workspace directories when
// the caller configures nothing more specific.
const defaultWorkspaceRoot = "workspaces"

// printedError marks an error whose envelope has already been written to
// stdout by cmdErr, so Execute's caller doesn't print it again. Its Unwrap
// exposes the original error for exit-code mapping (see output.ExitCode).
type printedError struct {
	err error
}

func (e printedError) Error() string { return "error already printed" }
func (e printedError) Unwrap() error { return e.err }

func openDB() (*DB, func(), error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return nil, nil, err
	}
	db, err := store.InitDBWithPath(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// withOrchestrator opens the database, wires a full Orchestrator against it,
// and runs fn, closing the database afterward regardless of outcome.
func withOrchestrator(fn func(o *orchestrator.Orchestrator) error) error {
	db, closeDB, err := openDB()
	if err != nil {
		return err
	}
	defer closeDB()

	settings := app.EffectiveSettings()
	staleTTL := time.Duration(settings.QueueStaleTimeoutSeconds) * time.Second

	locks := lock.NewManager(db)
	sessions := store.NewSessionStore(db)
	agents := agent.New(db, defaultLivenessTTL)
	q := queue.New(db, locks, agents, staleTTL)
	vcs := adapters.NewVCS("")
	mux := adapters.NewMux("")
	tracker := adapters.NewTracker("")

	o := orchestrator.New(db, sessions, locks, q, agents, vcs, mux, tracker, defaultWorkspaceRoot, settings)
	return fn(o)
}

// cmdErr prints a failure envelope for schema and wraps err so Execute can
// recover it for exit-code mapping without printing it twice.
func cmdErr(schema string, err error) error {
	if err == nil {
		return nil
	}
	if printErr := printError(schema, err); printErr != nil {
		slog.Error("failed to print error envelope", "error", printErr.Error(), "original", err.Error())
	}
	return printedError{err: err}
}
