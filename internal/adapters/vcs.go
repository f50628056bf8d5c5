package adapters

import (
	"context"
	"os"
	"strings"
)

const defaultVCSCommand = "swarmyard-vcs"

// VCS wraps the version-control subprocess contract: create a named
// workspace, rebase it onto trunk, resolve or report conflicts, and
// fast-forward trunk to a workspace head.
type VCS struct {
	command string
}

// NewVCS returns a VCS adapter invoking command, or $SWARMYARD_VCS_CMD, or
// defaultVCSCommand if neither is given.
func NewVCS(command string) *VCS {
	if command == "" {
		command = os.Getenv("SWARMYARD_VCS_CMD")
	}
	if command == "" {
		command = defaultVCSCommand
	}
	return &VCS{command: command}
}

// CreateWorkspace creates a named checkout at path.
func (v *VCS) CreateWorkspace(ctx context.Context, name, path string) (Result, error) {
	return run(ctx, "vcs", v.command, "create-workspace", name, path)
}

// RebaseOntoTrunk rebases the workspace at path onto trunk, returning the
// resulting head SHA. A non-empty conflicts slice means the rebase stopped
// short of completing; the caller is responsible for resolving or
// abandoning before retrying.
func (v *VCS) RebaseOntoTrunk(ctx context.Context, path string) (headSHA string, conflicts []string, err error) {
	result, err := run(ctx, "vcs", v.command, "rebase", path)
	if err != nil {
		return "", nil, err
	}
	return parseRebaseOutput(result.Stdout)
}

func parseRebaseOutput(stdout string) (headSHA string, conflicts []string, err error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "head_sha="):
			headSHA = strings.TrimPrefix(line, "head_sha=")
		case strings.HasPrefix(line, "conflict="):
			conflicts = append(conflicts, strings.TrimPrefix(line, "conflict="))
		}
	}
	return headSHA, conflicts, nil
}

// ReportConflicts lists the files currently conflicting in the workspace at path.
func (v *VCS) ReportConflicts(ctx context.Context, path string) ([]string, error) {
	result, err := run(ctx, "vcs", v.command, "conflicts", path)
	if err != nil {
		return nil, err
	}
	if result.Stdout == "" {
		return nil, nil
	}
	return strings.Split(result.Stdout, "\n"), nil
}

// FastForwardTrunk advances trunk to headSHA, which must be reachable from
// the current trunk tip.
func (v *VCS) FastForwardTrunk(ctx context.Context, headSHA string) error {
	_, err := run(ctx, "vcs", v.command, "fast-forward", headSHA)
	return err
}
