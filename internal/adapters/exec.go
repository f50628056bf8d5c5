// Package adapters wraps the three subprocess contracts the orchestrator
// calls out to (spec.md §6): a VCS adapter over named checkouts, a terminal
// multiplexer adapter over tabs, and an issue-tracker adapter over beads.
// Every adapter shells out to a configurable external binary and reports
// {stdout, stderr, exit_code}; a non-zero exit always becomes
// *models.ExternalCommandError (exit code 4).
package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/dotcommander/swarmyard/internal/models"
)

// maxCapturedStderr bounds how much of a failing subprocess's stderr is kept,
// mirroring the LLM CLI runner's defense against unbounded output.
const maxCapturedStderr = 4096

// Result is the raw outcome of one subprocess invocation.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// limitedWriter caps writes at maxBytes, silently discarding overflow.
type limitedWriter struct {
	buf      bytes.Buffer
	maxBytes int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	originalLen := len(p)
	remaining := w.maxBytes - w.buf.Len()
	if remaining <= 0 {
		return originalLen, nil
	}
	if len(p) > remaining {
		p = p[:remaining]
	}
	w.buf.Write(p)
	return originalLen, nil
}

// run executes command with args under ctx's deadline, preflighting with
// exec.LookPath. A non-zero exit or lookup failure returns
// *models.ExternalCommandError; the caller's adapter name is recorded for
// the error's suggestion text.
func run(ctx context.Context, adapter, command string, args ...string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &models.ExternalCommandError{Adapter: adapter, Command: command, ExitCode: -1, Stderr: err.Error()}
	}
	if _, err := exec.LookPath(command); err != nil {
		return Result{}, &models.ExternalCommandError{Adapter: adapter, Command: command, ExitCode: -1, Stderr: err.Error()}
	}

	cmd := exec.CommandContext(ctx, command, args...) //nolint:gosec // G204: command is the operator-configured adapter binary
	var stdout bytes.Buffer
	stderrW := &limitedWriter{maxBytes: maxCapturedStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderrW

	runErr := cmd.Run()
	stderr := stderrW.buf.String()
	if stderrW.buf.Len() >= maxCapturedStderr {
		stderr += " (truncated)"
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	result := Result{Stdout: strings.TrimSpace(stdout.String()), Stderr: stderr, ExitCode: exitCode}
	if runErr != nil {
		return result, &models.ExternalCommandError{
			Adapter:  adapter,
			Command:  fmt.Sprintf("%s %s", command, strings.Join(args, " ")),
			ExitCode: exitCode,
			Stderr:   stderr,
		}
	}
	return result, nil
}
