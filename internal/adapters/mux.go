package adapters

import (
	"context"
	"os"
)

const defaultMuxCommand = "swarmyard-mux"

// Mux wraps the terminal multiplexer subprocess contract: create, focus,
// and close a tab rooted at a workspace path.
type Mux struct {
	command string
}

// NewMux returns a Mux adapter invoking command, or $SWARMYARD_MUX_CMD, or
// defaultMuxCommand if neither is given.
func NewMux(command string) *Mux {
	if command == "" {
		command = os.Getenv("SWARMYARD_MUX_CMD")
	}
	if command == "" {
		command = defaultMuxCommand
	}
	return &Mux{command: command}
}

// CreateTab opens a new tab named name, rooted at path.
func (m *Mux) CreateTab(ctx context.Context, name, path string) error {
	_, err := run(ctx, "mux", m.command, "create-tab", name, path)
	return err
}

// FocusTab brings the tab named name into view.
func (m *Mux) FocusTab(ctx context.Context, name string) error {
	_, err := run(ctx, "mux", m.command, "focus-tab", name)
	return err
}

// CloseTab closes the tab named name.
func (m *Mux) CloseTab(ctx context.Context, name string) error {
	_, err := run(ctx, "mux", m.command, "close-tab", name)
	return err
}
