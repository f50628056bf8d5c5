package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/dotcommander/swarmyard/internal/models"
	"github.com/stretchr/testify/require"
)

// Compile-time check: models.RecoverableError must satisfy the local recoverableError interface.
var _ recoverableError = (models.RecoverableError)(nil)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	original := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = original }()

	fn()

	require.NoError(t, w.Close())

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	return string(b)
}

func TestSuccessSchemaAndErrorSchema(t *testing.T) {
	s := SuccessSchema("swarmyard://add-response/v1", map[string]string{"k": "v"})
	require.Equal(t, schemaVersion, s.SchemaVersion)
	require.Equal(t, SchemaSingle, s.SchemaType)
	require.True(t, s.Success)
	require.Nil(t, s.Error)

	e := ErrorSchema("swarmyard://add-response/v1", errors.New("boom"))
	require.Equal(t, schemaVersion, e.SchemaVersion)
	require.False(t, e.Success)
	require.Equal(t, "boom", e.Error.Message)
	require.Equal(t, "INTERNAL", e.Error.Code)
}

func TestPrintWith_CompactJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Writer: &buf, Pretty: false}

	err := PrintWith(cfg, map[string]string{"hello": "world"})
	require.NoError(t, err)
	require.Equal(t, "{\"hello\":\"world\"}\n", buf.String())
}

func TestPrintWith_PrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Writer: &buf, Pretty: true}

	err := PrintWith(cfg, map[string]string{"hello": "world"})
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "\n  \"hello\": \"world\"\n")
	require.True(t, strings.HasPrefix(out, "{\n"))
}

func TestPrint_DefaultCompactJSON(t *testing.T) {
	t.Setenv("SWARMYARD_PRETTY_JSON", "")

	out := captureStdout(t, func() {
		err := Print(map[string]string{"hello": "world"})
		require.NoError(t, err)
	})

	require.Equal(t, "{\"hello\":\"world\"}\n", out)
}

func TestPrint_PrettyJSONEnabled(t *testing.T) {
	for _, value := range []string{"1", "true"} {
		t.Run(value, func(t *testing.T) {
			t.Setenv("SWARMYARD_PRETTY_JSON", value)

			out := captureStdout(t, func() {
				err := Print(map[string]string{"hello": "world"})
				require.NoError(t, err)
			})

			require.Contains(t, out, "\n  \"hello\": \"world\"\n")
			require.True(t, strings.HasPrefix(out, "{\n"))
		})
	}
}

func TestPrintSuccessAndPrintError(t *testing.T) {
	t.Setenv("SWARMYARD_PRETTY_JSON", "")

	successOut := captureStdout(t, func() {
		err := PrintSuccess("swarmyard://queue-list-response/v1", map[string]int{"count": 2})
		require.NoError(t, err)
	})
	require.Contains(t, successOut, `"_schema_version":"1.0"`)
	require.Contains(t, successOut, `"schema_type":"single"`)
	require.Contains(t, successOut, `"success":true`)
	require.Contains(t, successOut, `"count":2`)

	errorOut := captureStdout(t, func() {
		err := PrintError("swarmyard://queue-list-response/v1", errors.New("bad things"))
		require.NoError(t, err)
	})
	require.Contains(t, errorOut, `"success":false`)
	require.Contains(t, errorOut, `"message":"bad things"`)
}

func TestPrintSuccessArray(t *testing.T) {
	t.Setenv("SWARMYARD_PRETTY_JSON", "")

	out := captureStdout(t, func() {
		err := PrintSuccessArray("swarmyard://queue-list-response/v1", []int{1, 2, 3})
		require.NoError(t, err)
	})
	require.Contains(t, out, `"schema_type":"array"`)
	require.Contains(t, out, `"items":[1,2,3]`)
}

func TestError_EnrichedRecoverableError(t *testing.T) {
	t.Run("plain error has no enriched fields", func(t *testing.T) {
		resp := ErrorSchema("swarmyard://x/v1", errors.New("something broke"))
		require.False(t, resp.Success)
		require.Equal(t, "something broke", resp.Error.Message)
		require.Equal(t, "INTERNAL", resp.Error.Code)
		require.Empty(t, resp.Error.Suggestion)
	})

	t.Run("recoverable error populates all enriched fields", func(t *testing.T) {
		re := &models.NotFoundError{Kind: "session", ID: "ws1"}
		resp := ErrorSchema("swarmyard://x/v1", re)
		require.False(t, resp.Success)
		require.Equal(t, "NOT_FOUND", resp.Error.Code)
		require.NotEmpty(t, resp.Error.Suggestion)
		require.Contains(t, resp.Error.Details, "ws1")
	})

	t.Run("recoverable error marshals enriched fields to JSON", func(t *testing.T) {
		t.Setenv("SWARMYARD_PRETTY_JSON", "")
		re := &models.SessionLockedError{SessionName: "ws1", Operation: "merge", ExpiresAt: "2026-01-01T00:00:00Z"}
		var buf bytes.Buffer
		cfg := Config{Writer: &buf, Pretty: false}
		err := PrintWith(cfg, ErrorSchema("swarmyard://x/v1", re))
		require.NoError(t, err)
		out := buf.String()
		require.Contains(t, out, `"code":"SESSION_LOCKED"`)
		require.Contains(t, out, `"suggestion"`)
		require.Contains(t, out, `"ws1"`)
	})
}

func TestEnvelope_FlattensSinglePayloadFields(t *testing.T) {
	env := SuccessSchema("swarmyard://add-response/v1", struct {
		Session string `json:"session"`
	}{Session: "ws1"})

	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, "ws1", decoded["session"])
	require.Equal(t, "swarmyard://add-response/v1", decoded["$schema"])
	require.Equal(t, "1.0", decoded["_schema_version"])
	require.Equal(t, "single", decoded["schema_type"])
	require.Equal(t, true, decoded["success"])
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(&models.ValidationError{Field: "name", Value: "", Message: "required"}))
	require.Equal(t, 2, ExitCode(&models.NotFoundError{Kind: "session", ID: "ws1"}))
	require.Equal(t, 4, ExitCode(&models.ExternalCommandError{Adapter: "vcs", Command: "rebase", ExitCode: 1}))
	require.Equal(t, 5, ExitCode(&models.SessionLockedError{SessionName: "ws1", Operation: "merge"}))
	require.Equal(t, 5, ExitCode(&models.ProcessingLockedError{}))
	require.Equal(t, 5, ExitCode(&models.DedupeKeyCollisionError{DedupeKey: "k1", EntryID: 1}))
	require.Equal(t, 3, ExitCode(&models.LockExpiredError{SessionName: "ws1", Operation: "merge"}))
	require.Equal(t, 3, ExitCode(&models.StoreCorruptError{Detail: "checksum mismatch"}))
	require.Equal(t, 3, ExitCode(errors.New("unclassified")))
}

func TestDefaultConfig(t *testing.T) {
	t.Run("default compact", func(t *testing.T) {
		t.Setenv("SWARMYARD_PRETTY_JSON", "")
		cfg := DefaultConfig()
		require.Equal(t, os.Stdout, cfg.Writer)
		require.False(t, cfg.Pretty)
	})

	t.Run("pretty enabled with 1", func(t *testing.T) {
		t.Setenv("SWARMYARD_PRETTY_JSON", "1")
		cfg := DefaultConfig()
		require.Equal(t, os.Stdout, cfg.Writer)
		require.True(t, cfg.Pretty)
	})

	t.Run("pretty enabled with true", func(t *testing.T) {
		t.Setenv("SWARMYARD_PRETTY_JSON", "true")
		cfg := DefaultConfig()
		require.Equal(t, os.Stdout, cfg.Writer)
		require.True(t, cfg.Pretty)
	})
}
