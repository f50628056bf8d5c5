package store

import (
	"context"
	"database/sql"

	"github.com/dotcommander/swarmyard/internal/models"
)

// RecordConflictResolution appends an audit row for how one file's merge
// conflict on session was resolved. Never updated or deleted (spec.md §3.1).
func RecordConflictResolution(ctx context.Context, db *sql.DB, cr *models.ConflictResolution) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO conflict_resolutions (created_at, session_name, file, strategy, reason, confidence, decider)
		VALUES (unixepoch(), ?, ?, ?, ?, ?, ?)
	`, cr.Session, cr.File, cr.Strategy, nullableString(cr.Reason), cr.Confidence, cr.Decider)
	return err
}

// ListConflictResolutions returns every recorded resolution for session,
// oldest first.
func ListConflictResolutions(ctx context.Context, db *sql.DB, session models.SessionName) ([]*models.ConflictResolution, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, session_name, file, strategy, reason, confidence, decider
		FROM conflict_resolutions WHERE session_name = ? ORDER BY id ASC
	`, string(session))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.ConflictResolution
	for rows.Next() {
		var cr models.ConflictResolution
		var createdAt int64
		var reason sql.NullString
		var confidence sql.NullFloat64
		if scanErr := rows.Scan(&cr.ID, &createdAt, &cr.Session, &cr.File, &cr.Strategy, &reason, &confidence, &cr.Decider); scanErr != nil {
			return nil, scanErr
		}
		cr.CreatedAt = fromUnix(createdAt)
		cr.Reason = reason.String
		if confidence.Valid {
			cr.Confidence = &confidence.Float64
		}
		out = append(out, &cr)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
