package types

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Result is the JSON envelope every command prints to stdout. Exactly one
// document is emitted per invocation; diagnostics go to stderr. Fields are
// omitted when empty so each command's envelope carries only what the
// operation produced.
type Result struct {
	Success    bool           `json:"success"`
	URL        string         `json:"url,omitempty"`
	Title      string         `json:"title,omitempty"`
	HTML       string         `json:"html,omitempty"`
	Query      string         `json:"query,omitempty"`
	Schema     string         `json:"schema,omitempty"`
	Model      string         `json:"model,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Results    any            `json:"results,omitempty"`
	Error      string         `json:"error,omitempty"`
	Traceback  string         `json:"traceback,omitempty"`
	Message    string         `json:"message,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// ServerStatus is the envelope for inference server lifecycle commands.
// Running is always present so a host can poll it without probing for
// field absence.
type ServerStatus struct {
	Running bool     `json:"running"`
	Message string   `json:"message"`
	Models  []string `json:"models,omitempty"`
	URL     string   `json:"url,omitempty"`
	PID     int      `json:"pid,omitempty"`
}

// Failure builds a failed Result from an error.
func Failure(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// Now returns the envelope timestamp for the current moment.
func Now() string {
	return time.Now().Format(time.RFC3339)
}

// WriteJSON encodes v to w as a single JSON document followed by a newline.
// Indented output is used by the orchestration commands whose envelopes a
// human may read directly.
func WriteJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// Emit writes the envelope to path when non-empty, announcing the location
// on stdout, and to stdout otherwise.
func Emit(v any, path string, indent bool) error {
	if path == "" {
		return WriteJSON(os.Stdout, v, indent)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := WriteJSON(f, v, indent); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	fmt.Printf("Result saved to %s\n", path)
	return nil
}
