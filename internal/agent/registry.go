// Package agent implements the registry of external actors that claim
// queue work and hold locks: registration, heartbeats, liveness, and
// crash-recovery reporting.
package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

// Registry tracks agent registration and heartbeats against livenessTTL.
// It implements queue.LivenessChecker.
type Registry struct {
	db          *sql.DB
	livenessTTL time.Duration
}

// New wires a Registry against db, using livenessTTL as the alive/stale cutoff.
func New(db *sql.DB, livenessTTL time.Duration) *Registry {
	return &Registry{db: db, livenessTTL: livenessTTL}
}

// Register inserts a new agent row. Returns *models.ValidationError if
// agentID is already registered and alive.
func (r *Registry) Register(ctx context.Context, agentID string, metadata map[string]string) error {
	if agentID == "" {
		return &models.ValidationError{Field: "agent_id", Value: agentID, Message: "must not be empty"}
	}
	metaJSON := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		metaJSON = string(b)
	}

	return store.Transact(ctx, r.db, func(tx *sql.Tx) error {
		var lastHeartbeat int64
		err := tx.QueryRowContext(ctx, `SELECT last_heartbeat FROM agents WHERE agent_id = ?`, agentID).Scan(&lastHeartbeat)
		if err == nil {
			if fromUnix(lastHeartbeat).After(time.Now().Add(-r.livenessTTL)) {
				return &models.ValidationError{Field: "agent_id", Value: agentID, Message: "already registered and alive"}
			}
			_, delErr := tx.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = ?`, agentID)
			if delErr != nil {
				return delErr
			}
		} else if err != sql.ErrNoRows {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO agents (agent_id, registered_at, last_heartbeat, metadata)
			VALUES (?, unixepoch(), unixepoch(), ?)
		`, agentID, metaJSON)
		return err
	})
}

// Heartbeat updates last_heartbeat (and, if given, current_command).
// Returns *models.NotFoundError if agentID was never registered.
func (r *Registry) Heartbeat(ctx context.Context, agentID, currentCommand string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE agents SET last_heartbeat = unixepoch(), current_command = ?
		WHERE agent_id = ?
	`, nullableString(currentCommand), agentID)
	if err != nil {
		return err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return &models.NotFoundError{Kind: "agent", ID: agentID}
	}
	return nil
}

// Status classifies an agent's liveness.
func (r *Registry) Status(ctx context.Context, agentID string) (models.AgentStatus, error) {
	var lastHeartbeat int64
	err := r.db.QueryRowContext(ctx, `SELECT last_heartbeat FROM agents WHERE agent_id = ?`, agentID).Scan(&lastHeartbeat)
	if err == sql.ErrNoRows {
		return models.AgentStatusUnknown, nil
	}
	if err != nil {
		return "", err
	}
	if fromUnix(lastHeartbeat).After(time.Now().Add(-r.livenessTTL)) {
		return models.AgentStatusAlive, nil
	}
	return models.AgentStatusStale, nil
}

// IsAlive implements queue.LivenessChecker.
func (r *Registry) IsAlive(ctx context.Context, agentID string) (bool, error) {
	status, err := r.Status(ctx, agentID)
	if err != nil {
		return false, err
	}
	return status == models.AgentStatusAlive, nil
}

// Unregister removes an agent's row.
func (r *Registry) Unregister(ctx context.Context, agentID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = ?`, agentID)
	return err
}

// Get loads one agent's registration row.
func (r *Registry) Get(ctx context.Context, agentID string) (*models.Agent, error) {
	var a models.Agent
	var registeredAt, lastHeartbeat int64
	var currentCommand, session sql.NullString
	var metaJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT agent_id, registered_at, last_heartbeat, current_command, session, metadata
		FROM agents WHERE agent_id = ?
	`, agentID).Scan(&a.AgentID, &registeredAt, &lastHeartbeat, &currentCommand, &session, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "agent", ID: agentID}
	}
	if err != nil {
		return nil, err
	}
	a.RegisteredAt = fromUnix(registeredAt)
	a.LastHeartbeat = fromUnix(lastHeartbeat)
	a.CurrentCommand = currentCommand.String
	a.Session = session.String
	if metaJSON != "" && metaJSON != "{}" {
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// ReclaimStale reports the ids of every registered agent whose last
// heartbeat is older than livenessTTL, for use by the merge-queue recovery
// sweep and by callers deciding whether to unregister a dead agent.
func (r *Registry) ReclaimStale(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT agent_id FROM agents WHERE last_heartbeat <= ?
	`, now.Add(-r.livenessTTL).Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func fromUnix(v int64) time.Time { return time.Unix(v, 0).UTC() }

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
