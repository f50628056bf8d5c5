package models

import "time"

// QueueEntryStatus is the merge-queue landing-protocol state of one entry.
type QueueEntryStatus string

const (
	QueueStatusPending         QueueEntryStatus = "pending"
	QueueStatusClaimed         QueueEntryStatus = "claimed"
	QueueStatusRebasing        QueueEntryStatus = "rebasing"
	QueueStatusTesting         QueueEntryStatus = "testing"
	QueueStatusReadyToMerge    QueueEntryStatus = "ready_to_merge"
	QueueStatusMerging         QueueEntryStatus = "merging"
	QueueStatusMerged          QueueEntryStatus = "merged"
	QueueStatusFailedRetryable QueueEntryStatus = "failed_retryable"
	QueueStatusFailedTerminal  QueueEntryStatus = "failed_terminal"
	QueueStatusCancelled       QueueEntryStatus = "cancelled"
)

// IsTerminal reports whether status is a sink of the queue state machine.
func (s QueueEntryStatus) IsTerminal() bool {
	switch s {
	case QueueStatusMerged, QueueStatusFailedTerminal, QueueStatusCancelled:
		return true
	default:
		return false
	}
}

// QueueTransition names one edge of the merge-queue state machine, keyed
// by the verb used in spec.md §4.4.2 (e.g. "rebase-ok", "merge-fail").
type QueueTransition string

const (
	TransitionClaim       QueueTransition = "claim"
	TransitionBeginRebase QueueTransition = "begin-rebase"
	TransitionRebaseOK    QueueTransition = "rebase-ok"
	TransitionRebaseFail  QueueTransition = "rebase-fail"
	TransitionTestsOK     QueueTransition = "tests-ok"
	TransitionTestsFail   QueueTransition = "tests-fail"
	TransitionBeginMerge  QueueTransition = "begin-merge"
	TransitionMergeOK     QueueTransition = "merge-ok"
	TransitionMergeFail   QueueTransition = "merge-fail"
	TransitionRetry       QueueTransition = "retry"
	TransitionGiveUp      QueueTransition = "give-up"
	TransitionCancel      QueueTransition = "cancel"
)

// queueEdges maps each transition to its allowed source states and the
// resulting destination state. Every arrow in spec.md §4.4.2 has exactly
// one entry here.
type queueEdge struct {
	from []QueueEntryStatus
	to   QueueEntryStatus
}

var queueEdges = map[QueueTransition]queueEdge{
	TransitionClaim:       {[]QueueEntryStatus{QueueStatusPending}, QueueStatusClaimed},
	TransitionBeginRebase: {[]QueueEntryStatus{QueueStatusClaimed}, QueueStatusRebasing},
	TransitionRebaseOK:    {[]QueueEntryStatus{QueueStatusRebasing}, QueueStatusTesting},
	TransitionRebaseFail:  {[]QueueEntryStatus{QueueStatusRebasing}, QueueStatusFailedRetryable},
	TransitionTestsOK:     {[]QueueEntryStatus{QueueStatusTesting}, QueueStatusReadyToMerge},
	TransitionTestsFail:   {[]QueueEntryStatus{QueueStatusTesting}, QueueStatusFailedRetryable},
	TransitionBeginMerge:  {[]QueueEntryStatus{QueueStatusReadyToMerge}, QueueStatusMerging},
	TransitionMergeOK:     {[]QueueEntryStatus{QueueStatusMerging}, QueueStatusMerged},
	TransitionMergeFail:   {[]QueueEntryStatus{QueueStatusMerging}, QueueStatusRebasing},
	TransitionRetry:       {[]QueueEntryStatus{QueueStatusFailedRetryable}, QueueStatusPending},
	TransitionGiveUp:      {[]QueueEntryStatus{QueueStatusFailedRetryable}, QueueStatusFailedTerminal},
	TransitionCancel: {[]QueueEntryStatus{
		QueueStatusPending, QueueStatusClaimed, QueueStatusRebasing, QueueStatusTesting,
		QueueStatusReadyToMerge, QueueStatusMerging, QueueStatusFailedRetryable,
	}, QueueStatusCancelled},
}

// QueueEdge reports the allowed source states and destination state for a
// transition verb, and whether the verb is known at all.
func QueueEdge(t QueueTransition) (from []QueueEntryStatus, to QueueEntryStatus, ok bool) {
	e, ok := queueEdges[t]
	return e.from, e.to, ok
}

// CanTransitionQueue reports whether firing transition t from state from is legal.
func CanTransitionQueue(from QueueEntryStatus, t QueueTransition) bool {
	e, ok := queueEdges[t]
	if !ok {
		return false
	}
	for _, s := range e.from {
		if s == from {
			return true
		}
	}
	return false
}

// QueueEntry is one workspace's position in the merge queue.
type QueueEntry struct {
	ID                int64            `json:"id"`
	Workspace         string           `json:"workspace"`
	BeadID            string           `json:"bead_id,omitempty"`
	Priority          int              `json:"priority"`
	Status            QueueEntryStatus `json:"status"`
	AddedAt           time.Time        `json:"added_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	AgentID           string           `json:"agent_id,omitempty"`
	DedupeKey         string           `json:"dedupe_key,omitempty"`
	WorkspaceState    SessionState     `json:"workspace_state"`
	PreviousState     SessionState     `json:"previous_state,omitempty"`
	StateChangedAt    time.Time        `json:"state_changed_at"`
	HeadSHA           string           `json:"head_sha,omitempty"`
	TestedAgainstSHA  string           `json:"tested_against_sha,omitempty"`
	AttemptCount      int              `json:"attempt_count"`
	MaxAttempts       int              `json:"max_attempts"`
	RebaseCount       int              `json:"rebase_count"`
	LastRebaseAt      *time.Time       `json:"last_rebase_at,omitempty"`
	Version           int              `json:"version"`
}

// QueueEventType is the kind of an append-only queue_events row.
type QueueEventType string

const (
	QueueEventCreated     QueueEventType = "created"
	QueueEventClaimed     QueueEventType = "claimed"
	QueueEventTransition  QueueEventType = "transitioned"
	QueueEventFailed      QueueEventType = "failed"
	QueueEventRetried     QueueEventType = "retried"
	QueueEventCancelled   QueueEventType = "cancelled"
	QueueEventMerged      QueueEventType = "merged"
	QueueEventRebased     QueueEventType = "rebased"
	QueueEventHeartbeat   QueueEventType = "heartbeat"
)

// QueueEvent is one append-only row in the monotonically-ordered audit log
// of everything that happened to a queue entry.
type QueueEvent struct {
	ID          int64          `json:"id"`
	QueueID     int64          `json:"queue_id"`
	EventType   QueueEventType `json:"event_type"`
	DetailsJSON string         `json:"details_json,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
