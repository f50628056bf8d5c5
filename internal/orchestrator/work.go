package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/dotcommander/swarmyard/internal/models"
)

// Work discovers the highest-priority tracker candidate without an active
// workspace and spawns one for it via Add, marking the issue in_progress on
// success. Returns *models.NotFoundError{Kind: "bead"} if the tracker has no
// unclaimed candidates.
func (o *Orchestrator) Work(ctx context.Context, agentID, requestID string, priority int, metadata map[string]string) (*models.Session, error) {
	candidates, err := o.Tracker.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		taken, err := o.beadHasActiveSession(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		name := workspaceNameForBead(candidate.ID)
		sess, err := o.Add(ctx, agentID, requestID, name, candidate.ID, metadata)
		if err != nil {
			return nil, err
		}
		if err := o.Tracker.UpdateStatus(ctx, candidate.ID, "in_progress"); err != nil {
			return nil, err
		}
		return sess, nil
	}

	return nil, &models.NotFoundError{Kind: "bead", ID: "candidate"}
}

func (o *Orchestrator) beadHasActiveSession(ctx context.Context, bead models.IssueID) (bool, error) {
	sessions, err := o.Sessions.List(ctx, models.SessionFilter{MetadataBeadID: string(bead)})
	if err != nil {
		return false, err
	}
	for _, sess := range sessions {
		if !sess.State.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

var beadSlugPattern = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// workspaceNameForBead derives a valid, likely-unique session name from a
// tracker issue id, suffixed with a short random token so two concurrent
// `work` calls racing on tracker staleness don't collide on the same name.
func workspaceNameForBead(bead models.IssueID) models.SessionName {
	slug := beadSlugPattern.ReplaceAllString(strings.ToLower(string(bead)), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" || !isLetter(slug[0]) {
		slug = "bead-" + slug
	}
	return models.SessionName(slug + "-" + uuid.NewString()[:8])
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
