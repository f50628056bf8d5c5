package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/dotcommander/swarmyard/internal/store"
)

func decodeJSON(b []byte, v any) error {
	return json.Unmarshal(b, v)
}

// recordConflictResolution appends a conflict_resolutions audit row.
func (o *Orchestrator) recordConflictResolution(ctx context.Context, name models.SessionName, file, strategy, reason string, confidence *float64, decider string) error {
	return store.RecordConflictResolution(ctx, o.db, &models.ConflictResolution{
		Session:    string(name),
		File:       file,
		Strategy:   strategy,
		Reason:     reason,
		Confidence: confidence,
		Decider:    decider,
	})
}

// ConflictHistory lists every recorded resolution for a session, oldest first.
func (o *Orchestrator) ConflictHistory(ctx context.Context, name models.SessionName) ([]*models.ConflictResolution, error) {
	return store.ListConflictResolutions(ctx, o.db, name)
}
