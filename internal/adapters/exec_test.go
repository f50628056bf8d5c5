package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body), 0o755))
}

func TestRun_CapturesStdout(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "ok-cmd", "echo hello-world\n")
	t.Setenv("PATH", dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := run(ctx, "vcs", "ok-cmd")
	require.NoError(t, err)
	require.Equal(t, "hello-world", result.Stdout)
	require.Equal(t, 0, result.ExitCode)
}

func TestRun_NonZeroExitMapsToExternalCommandError(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "failing-cmd", "echo boom >&2\nexit 3\n")
	t.Setenv("PATH", dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := run(ctx, "vcs", "failing-cmd")
	require.Error(t, err)
	var ece *models.ExternalCommandError
	require.ErrorAs(t, err, &ece)
	require.Equal(t, 3, ece.ExitCode)
	require.Contains(t, ece.Stderr, "boom")
}

func TestRun_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := run(ctx, "vcs", "nonexistent-binary")
	require.Error(t, err)
	var ece *models.ExternalCommandError
	require.ErrorAs(t, err, &ece)
}

func TestRun_StderrCapped(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "noisy-cmd", "dd if=/dev/zero bs=1024 count=10 2>/dev/null | tr '\\0' 'x' >&2\nexit 1\n")
	t.Setenv("PATH", dir)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := run(ctx, "vcs", "noisy-cmd")
	require.Error(t, err)
	var ece *models.ExternalCommandError
	require.ErrorAs(t, err, &ece)
	require.Contains(t, ece.Stderr, "truncated")
}

func TestLimitedWriter(t *testing.T) {
	w := &limitedWriter{maxBytes: 10}
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = w.Write([]byte("world and then some!"))
	require.NoError(t, err)
	require.Equal(t, 20, n)
	require.Equal(t, "helloworld", w.buf.String())
}
