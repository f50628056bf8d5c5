package store

import (
	"strconv"

	"github.com/dotcommander/swarmyard/internal/models"
)

// RecoverableError is an alias for models.RecoverableError, retained so
// callers can reference store.RecoverableError without importing models
// directly.
type RecoverableError = models.RecoverableError

// VersionConflictError reports that an optimistic-concurrency UPDATE
// touched zero rows because the row's version had already moved.
type VersionConflictError struct {
	Entity  string
	ID      string
	Version int
}

func (e *VersionConflictError) Error() string {
	return "version conflict: record was modified by another process"
}
func (e *VersionConflictError) ErrorCode() string { return "VERSION_CONFLICT" }
func (e *VersionConflictError) Context() map[string]string {
	return map[string]string{
		"entity":  e.Entity,
		"id":      e.ID,
		"version": strconv.Itoa(e.Version),
	}
}
func (e *VersionConflictError) SuggestedAction() string {
	return "reload the entity and retry with a new request-id"
}
func (e *VersionConflictError) Is(target error) bool { return target == ErrVersionConflict }

// LockBusyError reports that a lock acquire attempt found a live,
// non-expired row already present for the requested key.
type LockBusyError struct {
	Key       string
	ExpiresAt string
}

func (e *LockBusyError) Error() string { return "lock busy: " + e.Key }
func (e *LockBusyError) ErrorCode() string { return "LOCK_BUSY" }
func (e *LockBusyError) Context() map[string]string {
	return map[string]string{"key": e.Key, "expires_at": e.ExpiresAt}
}
func (e *LockBusyError) SuggestedAction() string {
	return "retry after expires_at, or inspect the current holder"
}

// IdempotencyInProgressError reports a request-id whose result row exists
// but has not yet been completed by the original caller (i.e. that caller's
// transaction is still open or crashed before completing it).
type IdempotencyInProgressError struct {
	AgentID   string
	RequestID string
	Command   string
}

func (e *IdempotencyInProgressError) Error() string { return "idempotency in progress" }
func (e *IdempotencyInProgressError) ErrorCode() string { return "IDEMPOTENCY_IN_PROGRESS" }
func (e *IdempotencyInProgressError) Context() map[string]string {
	return map[string]string{
		"agent_id":   e.AgentID,
		"request_id": e.RequestID,
		"command":    e.Command,
	}
}
func (e *IdempotencyInProgressError) SuggestedAction() string {
	return "wait and retry, or use a new request-id"
}
func (e *IdempotencyInProgressError) Is(target error) bool {
	return target == ErrIdempotencyInProgress
}
