package models

import "fmt"

// NotFoundError reports a missing entity of the given kind (session, queue
// entry, agent, bead, config key).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFoundError) ErrorCode() string { return "NOT_FOUND" }
func (e *NotFoundError) Context() map[string]string {
	return map[string]string{"kind": e.Kind, "id": e.ID}
}
func (e *NotFoundError) SuggestedAction() string {
	return "use 'list' to see what currently exists"
}

// NameInUseError reports a Create call for a session name that already exists.
type NameInUseError struct {
	Name string
}

func (e *NameInUseError) Error() string { return fmt.Sprintf("session name already in use: %s", e.Name) }
func (e *NameInUseError) ErrorCode() string { return "NAME_IN_USE" }
func (e *NameInUseError) Context() map[string]string {
	return map[string]string{"name": e.Name}
}
func (e *NameInUseError) SuggestedAction() string {
	return "choose a different session name, or use the existing session"
}

// InvalidTransitionError reports a rejected state-machine edge.
type InvalidTransitionError struct {
	Entity string // "session" | "queue_entry"
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}
func (e *InvalidTransitionError) ErrorCode() string { return "INVALID_TRANSITION" }
func (e *InvalidTransitionError) Context() map[string]string {
	return map[string]string{"entity": e.Entity, "from": e.From, "to": e.To}
}
func (e *InvalidTransitionError) SuggestedAction() string {
	return "check current state before retrying the transition"
}

// SessionLockedError reports contention on a (session, operation) lock.
// Maps to exit code 5 per the repo-wide contention mapping decided in
// SPEC_FULL.md.
type SessionLockedError struct {
	SessionName string
	Operation   string
	ExpiresAt   string
}

func (e *SessionLockedError) Error() string {
	return fmt.Sprintf("session %q is locked for %s", e.SessionName, e.Operation)
}
func (e *SessionLockedError) ErrorCode() string { return "SESSION_LOCKED" }
func (e *SessionLockedError) Context() map[string]string {
	return map[string]string{"session": e.SessionName, "operation": e.Operation, "expires_at": e.ExpiresAt}
}
func (e *SessionLockedError) SuggestedAction() string {
	return "retry after the lock expires, or use 'status' to see who holds it"
}

// ProcessingLockedError reports contention on the singleton processing lock.
type ProcessingLockedError struct {
	ExpiresAt string
}

func (e *ProcessingLockedError) Error() string { return "merge queue processing lock is held by another agent" }
func (e *ProcessingLockedError) ErrorCode() string { return "PROCESSING_LOCKED" }
func (e *ProcessingLockedError) Context() map[string]string {
	return map[string]string{"expires_at": e.ExpiresAt}
}
func (e *ProcessingLockedError) SuggestedAction() string {
	return "retry shortly; the processing lock is short-lived"
}

// LockExpiredError reports that a caller's lock handle is no longer valid.
type LockExpiredError struct {
	SessionName string
	Operation   string
}

func (e *LockExpiredError) Error() string {
	return fmt.Sprintf("lock on %q for %s has expired", e.SessionName, e.Operation)
}
func (e *LockExpiredError) ErrorCode() string { return "LOCK_EXPIRED" }
func (e *LockExpiredError) Context() map[string]string {
	return map[string]string{"session": e.SessionName, "operation": e.Operation}
}
func (e *LockExpiredError) SuggestedAction() string {
	return "re-acquire the lock before retrying"
}

// StoreCorruptError reports a database integrity failure that must never be
// silently ignored.
type StoreCorruptError struct {
	Detail string
}

func (e *StoreCorruptError) Error() string { return fmt.Sprintf("store corrupt: %s", e.Detail) }
func (e *StoreCorruptError) ErrorCode() string { return "STORE_CORRUPT" }
func (e *StoreCorruptError) Context() map[string]string {
	return map[string]string{"detail": e.Detail}
}
func (e *StoreCorruptError) SuggestedAction() string {
	return "run 'doctor integrity' and restore from backup if needed"
}

// ExternalCommandError reports a failed subprocess call-out (VCS,
// multiplexer, or tracker). Always maps to exit code 4.
type ExternalCommandError struct {
	Adapter  string // "vcs" | "mux" | "tracker"
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExternalCommandError) Error() string {
	return fmt.Sprintf("%s command %q failed (exit %d): %s", e.Adapter, e.Command, e.ExitCode, e.Stderr)
}
func (e *ExternalCommandError) ErrorCode() string { return "EXTERNAL_COMMAND_FAILED" }
func (e *ExternalCommandError) Context() map[string]string {
	return map[string]string{
		"adapter":   e.Adapter,
		"command":   e.Command,
		"exit_code": fmt.Sprintf("%d", e.ExitCode),
		"stderr":    e.Stderr,
	}
}
func (e *ExternalCommandError) SuggestedAction() string {
	return fmt.Sprintf("check that the %s command-line tool is installed and on PATH", e.Adapter)
}

// DedupeKeyCollisionError reports an enqueue call whose dedupe_key is
// already held by a terminal queue entry. dedupe_key is unique across all
// entries, so no new entry can take that key; a key held by a non-terminal
// entry is not an error (Enqueue returns that entry instead).
type DedupeKeyCollisionError struct {
	DedupeKey string
	EntryID   int64
}

func (e *DedupeKeyCollisionError) Error() string {
	return fmt.Sprintf("dedupe_key %q already maps to queue entry %d", e.DedupeKey, e.EntryID)
}
func (e *DedupeKeyCollisionError) ErrorCode() string { return "DEDUPE_COLLISION" }
func (e *DedupeKeyCollisionError) Context() map[string]string {
	return map[string]string{"dedupe_key": e.DedupeKey, "entry_id": fmt.Sprintf("%d", e.EntryID)}
}
func (e *DedupeKeyCollisionError) SuggestedAction() string {
	return "use a new dedupe_key for a distinct submission"
}

// InternalError always carries the triggering condition; never swallowed.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %v", e.Cause) }
func (e *InternalError) Unwrap() error { return e.Cause }
func (e *InternalError) ErrorCode() string { return "INTERNAL" }
func (e *InternalError) Context() map[string]string {
	if e.Cause == nil {
		return nil
	}
	return map[string]string{"cause": e.Cause.Error()}
}
func (e *InternalError) SuggestedAction() string {
	return "this is a bug; please report it with the triggering command"
}
