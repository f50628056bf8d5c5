// Package output renders command results as the enveloped JSON format every
// machine-readable command emits (spec.md §6): a "$schema" identifying the
// command and version, a schema_type discriminating a single object from an
// array payload, and a top-level success flag gating payload vs error shape.
package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/dotcommander/swarmyard/internal/models"
)

// recoverableError mirrors models.RecoverableError locally to avoid import
// cycles between output and store. errors.As requires a concrete or pointer
// type target — using the interface directly here lets Go's structural
// typing match any implementor.
type recoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

const schemaVersion = "1.0"

// SchemaType discriminates a single-object payload from an array payload.
type SchemaType string

const (
	SchemaSingle SchemaType = "single"
	SchemaArray  SchemaType = "array"
)

// envelopeError is the shape of the "error" field on a failure envelope.
type envelopeError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Envelope is the wire shape every command response takes.
type Envelope struct {
	Schema        string         `json:"$schema"`
	SchemaVersion string         `json:"_schema_version"`
	SchemaType    SchemaType     `json:"schema_type"`
	Success       bool           `json:"success"`
	Payload       any            `json:"-"`
	Error         *envelopeError `json:"error,omitempty"`
}

// MarshalJSON flattens Payload's fields alongside the envelope's own fields
// for a single-object payload (spec.md's "...payload or error..." shape,
// not nested under a "data" key); array payloads ride under "items".
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"$schema":         e.Schema,
		"_schema_version": e.SchemaVersion,
		"schema_type":     e.SchemaType,
		"success":         e.Success,
	}
	if !e.Success {
		out["error"] = e.Error
		return json.Marshal(out)
	}
	if e.SchemaType == SchemaArray {
		out["items"] = e.Payload
		return json.Marshal(out)
	}

	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payloadJSON, &fields); err != nil {
		// Payload isn't a JSON object (bare string, slice, nil); nest it
		// under "data" rather than silently dropping it.
		out["data"] = e.Payload
		return json.Marshal(out)
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// Config holds output configuration
type Config struct {
	Writer io.Writer
	Pretty bool
}

// DefaultConfig returns configuration using stdout and environment
func DefaultConfig() Config {
	pretty := os.Getenv("SWARMYARD_PRETTY_JSON") == "1" || os.Getenv("SWARMYARD_PRETTY_JSON") == "true"
	return Config{
		Writer: os.Stdout,
		Pretty: pretty,
	}
}

// SuccessSchema builds a success envelope for a single-object payload under
// the given command schema name (e.g. "swarmyard://add-response/v1").
func SuccessSchema(schema string, data any) Envelope {
	return Envelope{
		Schema:        schema,
		SchemaVersion: schemaVersion,
		SchemaType:    SchemaSingle,
		Success:       true,
		Payload:       data,
	}
}

// SuccessArraySchema builds a success envelope for an array payload.
func SuccessArraySchema(schema string, items any) Envelope {
	return Envelope{
		Schema:        schema,
		SchemaVersion: schemaVersion,
		SchemaType:    SchemaArray,
		Success:       true,
		Payload:       items,
	}
}

// ErrorSchema builds a failure envelope, enriching with structured metadata
// when err implements recoverableError.
func ErrorSchema(schema string, err error) Envelope {
	ee := &envelopeError{Message: err.Error(), Code: "INTERNAL"}
	var re recoverableError
	if errors.As(err, &re) {
		ee.Code = re.ErrorCode()
		ee.Suggestion = re.SuggestedAction()
		if ctx := re.Context(); len(ctx) > 0 {
			if b, marshalErr := json.Marshal(ctx); marshalErr == nil {
				ee.Details = string(b)
			}
		}
	}
	return Envelope{
		Schema:        schema,
		SchemaVersion: schemaVersion,
		SchemaType:    SchemaSingle,
		Success:       false,
		Error:         ee,
	}
}

// PrintWith prints a value as JSON to the configured writer
func PrintWith(cfg Config, v any) error {
	enc := json.NewEncoder(cfg.Writer)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Print prints a value as JSON to stdout.
// Default to compact JSON to minimize token/output size for agent consumption.
// Enable pretty JSON for humans via env var: SWARMYARD_PRETTY_JSON=1.
func Print(v any) error {
	return PrintWith(DefaultConfig(), v)
}

// PrintSuccess prints a single-object success envelope for schema.
func PrintSuccess(schema string, data any) error {
	return Print(SuccessSchema(schema, data))
}

// PrintSuccessArray prints an array success envelope for schema.
func PrintSuccessArray(schema string, items any) error {
	return Print(SuccessArraySchema(schema, items))
}

// PrintError prints a failure envelope for schema.
func PrintError(schema string, err error) error {
	return Print(ErrorSchema(schema, err))
}

// ExitCode maps err to the stable exit-code table of spec.md §6. All
// contention (SESSION_LOCKED, PROCESSING_LOCKED, dedupe-key collision) maps
// to 5 uniformly; exit code 3 is reserved for non-contention state errors
// (SPEC_FULL.md Open Question decision).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case asType[*models.ValidationError](err):
		return 1
	case asType[*models.NotFoundError](err):
		return 2
	case asType[*models.ExternalCommandError](err):
		return 4
	case asType[*models.SessionLockedError](err),
		asType[*models.ProcessingLockedError](err),
		asType[*models.DedupeKeyCollisionError](err):
		return 5
	default:
		return 3
	}
}

func asType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}
