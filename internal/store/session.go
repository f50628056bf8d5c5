package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/dotcommander/swarmyard/internal/models"
)

// SessionStore provides CRUD and lifecycle-transition operations over the
// sessions table, backed by a single *sql.DB shared with the rest of the
// persistence layer.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps db for session operations.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create inserts a new session row and its implicit "created" lifecycle
// start. Returns *models.NameInUseError if name is already taken, or
// *models.ValidationError if name or workspacePath are malformed.
func (s *SessionStore) Create(ctx context.Context, name models.SessionName, workspacePath string, metadata map[string]string, parent *int64) (*models.Session, error) {
	if err := name.Validate(); err != nil {
		return nil, err
	}
	if workspacePath == "" {
		return nil, &models.ValidationError{Field: "workspace_path", Value: workspacePath, Message: "must not be empty"}
	}

	sess := &models.Session{
		Name:          name,
		Status:        models.SessionStatusCreating,
		State:         models.SessionStateCreated,
		WorkspacePath: workspacePath,
		Metadata:      metadata,
		ParentSession: parent,
		Version:       1,
	}
	metaJSON, err := sess.MetadataJSON()
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	err = Transact(ctx, s.db, func(tx *sql.Tx) error {
		if parent != nil {
			var exists int
			if qerr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, *parent).Scan(&exists); qerr != nil {
				return fmt.Errorf("check parent session: %w", qerr)
			}
			if exists == 0 {
				return &models.NotFoundError{Kind: "session", ID: strconv.FormatInt(*parent, 10)}
			}
		}

		res, execErr := tx.ExecContext(ctx, `
			INSERT INTO sessions (name, status, state, workspace_path, created_at, updated_at, metadata, parent_session, version)
			VALUES (?, ?, ?, ?, unixepoch(), unixepoch(), ?, ?, 1)
		`, string(name), string(sess.Status), string(sess.State), workspacePath, metaJSON, parent)
		if execErr != nil {
			if IsUniqueConstraintErr(execErr) {
				return &models.NameInUseError{Name: string(name)}
			}
			return execErr
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			return idErr
		}
		sess.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, name)
}

// Get loads a session by name.
func (s *SessionStore) Get(ctx context.Context, name models.SessionName) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionSelectColumns+` FROM sessions WHERE name = ?`, string(name))
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Kind: "session", ID: string(name)}
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// List returns every session matching every non-zero predicate of filter.
func (s *SessionStore) List(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	query := `SELECT ` + sessionSelectColumns + ` FROM sessions WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.MetadataBeadID != "" {
		query += ` AND json_extract(metadata, '$.bead_id') = ?`
		args = append(args, filter.MetadataBeadID)
	}
	if filter.MetadataAgent != "" {
		query += ` AND json_extract(metadata, '$.agent_id') = ?`
		args = append(args, filter.MetadataAgent)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Session
	for rows.Next() {
		sess, scanErr := scanSessionRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Transition advances a session's workflow state, rejecting edges not in
// models.CanTransitionSession, and records a StateTransition row in the same
// transaction.
func (s *SessionStore) Transition(ctx context.Context, name models.SessionName, to models.SessionState, reason, agentID string) (*models.Session, error) {
	var result *models.Session
	err := Transact(ctx, s.db, func(tx *sql.Tx) error {
		var id int64
		var from models.SessionState
		var version int
		err := tx.QueryRowContext(ctx, `SELECT id, state, version FROM sessions WHERE name = ?`, string(name)).Scan(&id, &from, &version)
		if err == sql.ErrNoRows {
			return &models.NotFoundError{Kind: "session", ID: string(name)}
		}
		if err != nil {
			return err
		}
		if !models.CanTransitionSession(from, to) {
			return &models.InvalidTransitionError{Entity: "session", From: string(from), To: string(to)}
		}

		setLastSynced := ""
		if to == models.SessionStateMerged {
			setLastSynced = `, last_synced = unixepoch()`
		}

		res, execErr := tx.ExecContext(ctx, `
			UPDATE sessions
			SET state = ?, updated_at = unixepoch(), version = version + 1`+setLastSynced+`
			WHERE name = ? AND version = ?
		`, string(to), string(name), version)
		if execErr != nil {
			return execErr
		}
		ra, raErr := res.RowsAffected()
		if raErr != nil {
			return raErr
		}
		if ra == 0 {
			return &VersionConflictError{Entity: "session", ID: string(name), Version: version}
		}

		if _, txErr := tx.ExecContext(ctx, `
			INSERT INTO state_transitions (session_id, from_state, to_state, reason, agent_id, created_at)
			VALUES (?, ?, ?, ?, ?, unixepoch())
		`, id, string(from), string(to), reason, agentID); txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, name)
}

// SetStatus updates a session's operational status independently of its
// workflow state (the two vocabularies are intentionally uncoupled; see
// SPEC_FULL.md's status-vs-state decision).
func (s *SessionStore) SetStatus(ctx context.Context, name models.SessionName, status models.SessionStatus) (*models.Session, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = unixepoch(), version = version + 1
		WHERE name = ?
	`, string(status), string(name))
	if err != nil {
		return nil, err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if ra == 0 {
		return nil, &models.NotFoundError{Kind: "session", ID: string(name)}
	}
	return s.Get(ctx, name)
}

// TouchLastSynced stamps last_synced to now without changing state, used
// after a successful trunk rebase that doesn't itself advance the workflow
// state machine.
func (s *SessionStore) TouchLastSynced(ctx context.Context, name models.SessionName) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_synced = unixepoch(), updated_at = unixepoch(), version = version + 1
		WHERE name = ?
	`, string(name))
	if err != nil {
		return err
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return &models.NotFoundError{Kind: "session", ID: string(name)}
	}
	return nil
}

// SetMetadata merges key=value into a session's metadata map.
func (s *SessionStore) SetMetadata(ctx context.Context, name models.SessionName, key, value string) (*models.Session, error) {
	err := Transact(ctx, s.db, func(tx *sql.Tx) error {
		var metaJSON string
		var version int
		if err := tx.QueryRowContext(ctx, `SELECT metadata, version FROM sessions WHERE name = ?`, string(name)).Scan(&metaJSON, &version); err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Kind: "session", ID: string(name)}
			}
			return err
		}
		meta, decodeErr := decodeMetadata(metaJSON)
		if decodeErr != nil {
			return decodeErr
		}
		meta[key] = value
		sess := &models.Session{Metadata: meta}
		newJSON, encodeErr := sess.MetadataJSON()
		if encodeErr != nil {
			return encodeErr
		}

		res, execErr := tx.ExecContext(ctx, `
			UPDATE sessions SET metadata = ?, updated_at = unixepoch(), version = version + 1
			WHERE name = ? AND version = ?
		`, newJSON, string(name), version)
		if execErr != nil {
			return execErr
		}
		ra, _ := res.RowsAffected()
		if ra == 0 {
			return &VersionConflictError{Entity: "session", ID: string(name), Version: version}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, name)
}

// SetParent updates a session's parent_session, rejecting any assignment
// that would create a cycle in the parent chain.
func (s *SessionStore) SetParent(ctx context.Context, name models.SessionName, parent *int64) error {
	return Transact(ctx, s.db, func(tx *sql.Tx) error {
		var id int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE name = ?`, string(name)).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Kind: "session", ID: string(name)}
			}
			return err
		}
		if parent != nil {
			if *parent == id {
				return &models.ValidationError{Field: "parent_session", Value: strconv.FormatInt(*parent, 10), Message: "session cannot be its own parent"}
			}
			cursor := *parent
			for {
				var next sql.NullInt64
				if err := tx.QueryRowContext(ctx, `SELECT parent_session FROM sessions WHERE id = ?`, cursor).Scan(&next); err != nil {
					if err == sql.ErrNoRows {
						return &models.NotFoundError{Kind: "session", ID: strconv.FormatInt(cursor, 10)}
					}
					return err
				}
				if !next.Valid {
					break
				}
				if next.Int64 == id {
					return &models.ValidationError{Field: "parent_session", Value: strconv.FormatInt(*parent, 10), Message: "would create a parent-session cycle"}
				}
				cursor = next.Int64
			}
		}
		_, err := tx.ExecContext(ctx, `UPDATE sessions SET parent_session = ?, updated_at = unixepoch(), version = version + 1 WHERE id = ?`, parent, id)
		return err
	})
}

// Delete removes a session, rejecting the call if it is referenced as
// another session's parent_session or sits in a non-terminal queue state.
func (s *SessionStore) Delete(ctx context.Context, name models.SessionName) error {
	return Transact(ctx, s.db, func(tx *sql.Tx) error {
		var id int64
		var queueStatus sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT id, queue_status FROM sessions WHERE name = ?`, string(name)).Scan(&id, &queueStatus); err != nil {
			if err == sql.ErrNoRows {
				return &models.NotFoundError{Kind: "session", ID: string(name)}
			}
			return err
		}
		if queueStatus.Valid && !models.QueueEntryStatus(queueStatus.String).IsTerminal() {
			return &models.ValidationError{Field: "name", Value: string(name), Message: "session is in a non-terminal queue state"}
		}
		var refCount int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE parent_session = ?`, id).Scan(&refCount); err != nil {
			return err
		}
		if refCount > 0 {
			return &models.ValidationError{Field: "name", Value: string(name), Message: "session is referenced as another session's parent"}
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
		return err
	})
}
