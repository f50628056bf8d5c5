package models

import "time"

// AgentStatus is the liveness classification reported by the registry.
type AgentStatus string

const (
	AgentStatusAlive   AgentStatus = "alive"
	AgentStatusStale   AgentStatus = "stale"
	AgentStatusUnknown AgentStatus = "unknown"
)

// Agent is a registered external actor that claims work and holds locks.
type Agent struct {
	AgentID        string            `json:"agent_id"`
	RegisteredAt   time.Time         `json:"registered_at"`
	LastHeartbeat  time.Time         `json:"last_heartbeat"`
	CurrentCommand string            `json:"current_command,omitempty"`
	Session        string            `json:"session,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// IsAlive reports whether the agent's last heartbeat is within livenessTTL of now.
func (a *Agent) IsAlive(now time.Time, livenessTTL time.Duration) bool {
	return a.LastHeartbeat.After(now.Add(-livenessTTL))
}
