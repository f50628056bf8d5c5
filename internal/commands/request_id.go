package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// resolveRequestID returns the idempotency key for a mutating command: the
// --request-id flag, then $SWARMYARD_REQUEST_ID, or "" if neither is set.
// Unlike the teacher, an empty request id is legal here: beginIdempotent
// treats it as "idempotency disabled for this call" rather than an error.
func resolveRequestID(cmd *cobra.Command) string {
	if v, err := cmd.Flags().GetString("request-id"); err == nil && v != "" {
		return v
	}
	return os.Getenv("SWARMYARD_REQUEST_ID")
}
