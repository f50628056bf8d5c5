package adapters

import (
	"context"
	"encoding/json"
	"os"

	"github.com/dotcommander/swarmyard/internal/models"
)

const defaultTrackerCommand = "swarmyard-tracker"

// Tracker wraps the issue-tracker subprocess contract: look up an issue by
// id, update its status, and list candidate issues for enqueueing.
type Tracker struct {
	command string
}

// NewTracker returns a Tracker adapter invoking command, or
// $SWARMYARD_TRACKER_CMD, or defaultTrackerCommand if neither is given.
func NewTracker(command string) *Tracker {
	if command == "" {
		command = os.Getenv("SWARMYARD_TRACKER_CMD")
	}
	if command == "" {
		command = defaultTrackerCommand
	}
	return &Tracker{command: command}
}

// Issue is the tracker's view of a bead, decoded from its JSON stdout.
type Issue struct {
	ID     models.IssueID `json:"id"`
	Title  string         `json:"title"`
	Status string         `json:"status"`
}

// LookupIssue fetches one issue by id.
func (t *Tracker) LookupIssue(ctx context.Context, id models.IssueID) (*Issue, error) {
	result, err := run(ctx, "tracker", t.command, "lookup", string(id))
	if err != nil {
		return nil, err
	}
	var issue Issue
	if jsonErr := json.Unmarshal([]byte(result.Stdout), &issue); jsonErr != nil {
		return nil, &models.ExternalCommandError{Adapter: "tracker", Command: "lookup " + string(id), ExitCode: 0, Stderr: jsonErr.Error()}
	}
	return &issue, nil
}

// UpdateStatus sets the tracker status for id.
func (t *Tracker) UpdateStatus(ctx context.Context, id models.IssueID, status string) error {
	_, err := run(ctx, "tracker", t.command, "update-status", string(id), status)
	return err
}

// ListCandidates lists issues the tracker considers ready to enqueue.
func (t *Tracker) ListCandidates(ctx context.Context) ([]*Issue, error) {
	result, err := run(ctx, "tracker", t.command, "list-candidates")
	if err != nil {
		return nil, err
	}
	var issues []*Issue
	if result.Stdout == "" {
		return issues, nil
	}
	if jsonErr := json.Unmarshal([]byte(result.Stdout), &issues); jsonErr != nil {
		return nil, &models.ExternalCommandError{Adapter: "tracker", Command: "list-candidates", ExitCode: 0, Stderr: jsonErr.Error()}
	}
	return issues, nil
}
