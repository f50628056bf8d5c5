package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTracker_LookupIssue(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "swarmyard-tracker")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
if [ "$1" != "lookup" ] || [ "$2" != "ISSUE-1" ]; then
  echo "bad args" >&2
  exit 1
fi
echo '{"id":"ISSUE-1","title":"fix the thing","status":"open"}'
`), 0o755))
	t.Setenv("PATH", dir)

	tr := NewTracker("")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	issue, err := tr.LookupIssue(ctx, "ISSUE-1")
	require.NoError(t, err)
	require.Equal(t, "fix the thing", issue.Title)
	require.Equal(t, "open", issue.Status)
}

func TestTracker_ListCandidates(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "swarmyard-tracker")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
echo '[{"id":"ISSUE-1","title":"a","status":"open"},{"id":"ISSUE-2","title":"b","status":"open"}]'
`), 0o755))
	t.Setenv("PATH", dir)

	tr := NewTracker("")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	issues, err := tr.ListCandidates(ctx)
	require.NoError(t, err)
	require.Len(t, issues, 2)
}

func TestTracker_UpdateStatus(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "swarmyard-tracker")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
if [ "$1" != "update-status" ] || [ "$2" != "ISSUE-1" ] || [ "$3" != "in_progress" ]; then
  echo "bad args" >&2
  exit 1
fi
`), 0o755))
	t.Setenv("PATH", dir)

	tr := NewTracker("")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.UpdateStatus(ctx, "ISSUE-1", "in_progress"))
}
