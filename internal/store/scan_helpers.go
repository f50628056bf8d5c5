package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
)

// decodeMetadata parses a session's metadata column, treating blank/"{}" as
// an empty map rather than an error.
func decodeMetadata(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" || strings.TrimSpace(raw) == "{}" {
		return map[string]string{}, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

// timestamps are stored as unix-seconds INTEGER columns so CHECK constraints
// comparing created_at <= updated_at work as plain integer comparisons.

func toUnix(t time.Time) int64 {
	return t.Unix()
}

func toUnixPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(v int64) time.Time {
	return time.Unix(v, 0).UTC()
}

func fromUnixNull(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

// scanNullString converts sql.NullString to string (empty if NULL).
func scanNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// scanNullTime converts sql.NullTime to *time.Time (nil if NULL).
func scanNullTime(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// sessionRowScanner encapsulates the common session row scanning logic. The
// column order must match the SELECT list used by every caller in session.go.
type sessionRowScanner struct {
	session       models.Session
	branch        sql.NullString
	lastSynced    sql.NullInt64
	parentSession sql.NullInt64
	queueStatus   sql.NullString
	metadataJSON  string
}

func (s *sessionRowScanner) scan(row rowScanner) error {
	var createdAt, updatedAt int64
	if err := row.Scan(
		&s.session.ID,
		&s.session.Name,
		&s.session.Status,
		&s.session.State,
		&s.session.WorkspacePath,
		&s.branch,
		&createdAt,
		&updatedAt,
		&s.lastSynced,
		&s.metadataJSON,
		&s.parentSession,
		&s.queueStatus,
		&s.session.Version,
	); err != nil {
		return err
	}
	s.session.CreatedAt = fromUnix(createdAt)
	s.session.UpdatedAt = fromUnix(updatedAt)
	return nil
}

func (s *sessionRowScanner) hydrate() error {
	s.session.Branch = scanNullString(s.branch)
	s.session.LastSynced = fromUnixNull(s.lastSynced)
	if s.parentSession.Valid {
		id := s.parentSession.Int64
		s.session.ParentSession = &id
	}
	if s.queueStatus.Valid {
		qs := models.QueueEntryStatus(s.queueStatus.String)
		s.session.QueueStatus = &qs
	}
	meta, err := decodeMetadata(s.metadataJSON)
	if err != nil {
		return err
	}
	s.session.Metadata = meta
	return nil
}

func (s *sessionRowScanner) get() *models.Session { return &s.session }

// sessionSelectColumns is the canonical column list backing sessionRowScanner.Scan.
const sessionSelectColumns = `
	id, name, status, state, workspace_path, branch,
	created_at, updated_at, last_synced, metadata,
	parent_session, queue_status, version
`

// scanSessionRow scans and hydrates a session from a single row using
// sessionSelectColumns as the SELECT list.
func scanSessionRow(row rowScanner) (*models.Session, error) {
	scanner := &sessionRowScanner{}
	if err := scanner.scan(row); err != nil {
		return nil, err
	}
	if err := scanner.hydrate(); err != nil {
		return nil, err
	}
	return scanner.get(), nil
}

// queueEntryRowScanner encapsulates the common queue_entries row scanning logic.
type queueEntryRowScanner struct {
	entry            models.QueueEntry
	beadID           sql.NullString
	startedAt        sql.NullInt64
	completedAt      sql.NullInt64
	errorMessage     sql.NullString
	agentID          sql.NullString
	dedupeKey        sql.NullString
	previousState    sql.NullString
	headSHA          sql.NullString
	testedAgainstSHA sql.NullString
	lastRebaseAt     sql.NullInt64
}

// queueEntrySelectColumns is the canonical column list backing queueEntryRowScanner.Scan.
const queueEntrySelectColumns = `
	id, workspace, bead_id, priority, status, added_at, started_at, completed_at,
	error_message, agent_id, dedupe_key, workspace_state, previous_state,
	state_changed_at, head_sha, tested_against_sha, attempt_count, max_attempts,
	rebase_count, last_rebase_at, version
`

func (s *queueEntryRowScanner) scan(row rowScanner) error {
	var addedAt, stateChangedAt int64
	if err := row.Scan(
		&s.entry.ID,
		&s.entry.Workspace,
		&s.beadID,
		&s.entry.Priority,
		&s.entry.Status,
		&addedAt,
		&s.startedAt,
		&s.completedAt,
		&s.errorMessage,
		&s.agentID,
		&s.dedupeKey,
		&s.entry.WorkspaceState,
		&s.previousState,
		&stateChangedAt,
		&s.headSHA,
		&s.testedAgainstSHA,
		&s.entry.AttemptCount,
		&s.entry.MaxAttempts,
		&s.entry.RebaseCount,
		&s.lastRebaseAt,
		&s.entry.Version,
	); err != nil {
		return err
	}
	s.entry.AddedAt = fromUnix(addedAt)
	s.entry.StateChangedAt = fromUnix(stateChangedAt)
	return nil
}

func (s *queueEntryRowScanner) hydrate() {
	s.entry.BeadID = scanNullString(s.beadID)
	s.entry.StartedAt = fromUnixNull(s.startedAt)
	s.entry.CompletedAt = fromUnixNull(s.completedAt)
	s.entry.ErrorMessage = scanNullString(s.errorMessage)
	s.entry.AgentID = scanNullString(s.agentID)
	s.entry.DedupeKey = scanNullString(s.dedupeKey)
	if s.previousState.Valid {
		s.entry.PreviousState = models.SessionState(s.previousState.String)
	}
	s.entry.HeadSHA = scanNullString(s.headSHA)
	s.entry.TestedAgainstSHA = scanNullString(s.testedAgainstSHA)
	s.entry.LastRebaseAt = fromUnixNull(s.lastRebaseAt)
}

func (s *queueEntryRowScanner) get() *models.QueueEntry { return &s.entry }

// scanQueueEntryRow scans and hydrates a queue entry from a single row using
// queueEntrySelectColumns as the SELECT list.
func scanQueueEntryRow(row rowScanner) (*models.QueueEntry, error) {
	scanner := &queueEntryRowScanner{}
	if err := scanner.scan(row); err != nil {
		return nil, err
	}
	scanner.hydrate()
	return scanner.get(), nil
}
