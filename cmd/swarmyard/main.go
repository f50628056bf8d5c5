// Swarmyard coordinates many concurrent AI agents operating isolated VCS
// workspaces and landing their work onto a shared trunk through a fair,
// serialized merge queue.
package main

import (
	"os"
	"runtime/debug"

	"github.com/dotcommander/swarmyard/internal/commands"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	err := commands.Execute(version)
	os.Exit(commands.ExitCodeOf(err))
}
