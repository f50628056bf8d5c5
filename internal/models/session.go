package models

import (
	"encoding/json"
	"time"
)

// SessionStatus is the session's operational status: independent of State
// per the design decision recorded in SPEC_FULL.md (the source mixes the
// two vocabularies without fully documenting their relationship).
type SessionStatus string

const (
	SessionStatusCreating  SessionStatus = "creating"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// SessionState is the session's workflow state, advanced only through
// Transition and the allowed-transition table in AllowedSessionTransitions.
type SessionState string

const (
	SessionStateCreated   SessionState = "created"
	SessionStateWorking   SessionState = "working"
	SessionStateReady     SessionState = "ready"
	SessionStateMerged    SessionState = "merged"
	SessionStateAbandoned SessionState = "abandoned"
	SessionStateConflict  SessionState = "conflict"
)

// IsTerminal reports whether no further transitions are allowed from state.
func (s SessionState) IsTerminal() bool {
	return s == SessionStateMerged || s == SessionStateAbandoned
}

// allowedSessionTransitions enumerates every legal (from, to) edge of the
// session workflow state machine.
var allowedSessionTransitions = map[SessionState]map[SessionState]bool{
	SessionStateCreated: {
		SessionStateWorking:   true,
		SessionStateAbandoned: true,
	},
	SessionStateWorking: {
		SessionStateReady:     true,
		SessionStateConflict:  true,
		SessionStateAbandoned: true,
	},
	SessionStateReady: {
		SessionStateMerged:    true,
		SessionStateWorking:   true,
		SessionStateConflict:  true,
		SessionStateAbandoned: true,
	},
	SessionStateConflict: {
		SessionStateWorking:   true,
		SessionStateAbandoned: true,
	},
}

// CanTransitionSession reports whether from -> to is a legal edge.
func CanTransitionSession(from, to SessionState) bool {
	edges, ok := allowedSessionTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// Session is a workspace record: the durable row backing one agent's
// isolated VCS checkout and its position in the workflow state machine.
type Session struct {
	ID            int64             `json:"id"`
	Name          SessionName       `json:"name"`
	Status        SessionStatus     `json:"status"`
	State         SessionState      `json:"state"`
	WorkspacePath string            `json:"workspace_path"`
	Branch        string            `json:"branch,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	LastSynced    *time.Time        `json:"last_synced,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	ParentSession *int64            `json:"parent_session,omitempty"`
	QueueStatus   *QueueEntryStatus `json:"queue_status,omitempty"`
	Version       int               `json:"version"`
}

// MetadataJSON marshals Metadata for storage; a nil map becomes "{}".
func (s *Session) MetadataJSON() (string, error) {
	if s.Metadata == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s.Metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BeadID returns the tracker issue id recorded in metadata, if any.
func (s *Session) BeadID() string { return s.Metadata["bead_id"] }

// AgentID returns the owning agent recorded in metadata, if any.
func (s *Session) AgentID() string { return s.Metadata["agent_id"] }

// StateTransition is an append-only record of one session state change.
type StateTransition struct {
	ID        int64        `json:"id"`
	SessionID int64        `json:"session_id"`
	FromState SessionState `json:"from_state,omitempty"`
	ToState   SessionState `json:"to_state"`
	Reason    string       `json:"reason,omitempty"`
	AgentID   string       `json:"agent_id,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ConflictResolution is an append-only audit row recording how a merge
// conflict on a single file was resolved.
type ConflictResolution struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Session     string    `json:"session"`
	File        string    `json:"file"`
	Strategy    string    `json:"strategy"`
	Reason      string    `json:"reason,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Decider     string    `json:"decider"` // "ai" | "human"
}

// SessionFilter narrows List to sessions matching every non-zero predicate.
type SessionFilter struct {
	Status         SessionStatus
	State          SessionState
	MetadataBeadID string
	MetadataAgent  string
}
