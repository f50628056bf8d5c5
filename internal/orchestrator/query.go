package orchestrator

import (
	"context"

	"github.com/dotcommander/swarmyard/internal/models"
)

// List returns every session matching filter.
func (o *Orchestrator) List(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	return o.Sessions.List(ctx, filter)
}

// Status loads one session by name.
func (o *Orchestrator) Status(ctx context.Context, name models.SessionName) (*models.Session, error) {
	return o.Sessions.Get(ctx, name)
}

// Focus brings a session's multiplexer tab into view. It does not take a
// session lock: focusing is a read-mostly UI action, not a mutation of
// workflow state.
func (o *Orchestrator) Focus(ctx context.Context, name models.SessionName) (*models.Session, error) {
	sess, err := o.Sessions.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := o.Mux.FocusTab(ctx, string(name)); err != nil {
		return nil, err
	}
	return sess, nil
}
