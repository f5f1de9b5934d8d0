package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Run completed
	ExitFailure      = 1 // Run failed: no records, export failed, overwrite declined
	ExitCommandError = 2 // Bad flags, invalid config or request, connection failed
)

// Error codes for command errors. Run failures are reported with their
// selection error kind (EMPTY_RESULT, EXPORT, ...) instead.
const (
	ErrCodeGeneric    = "E001"
	ErrCodeConfig     = "E002"
	ErrCodeConnection = "E003"
	ErrCodeQueryFile  = "E004"
	ErrCodeNotFound   = "E005"
	ErrCodeRequest    = "E006"
)

// ExitError carries the process exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error // optional
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" or "error"
	RunID  string      `json:"run_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error part of a CLIResponse.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as a JSON envelope.
// Diagnostics go to ErrWriter (Writer when unset) so JSON stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

func (f *OutputFormatter) isJSON() bool {
	return f.Format == "json"
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success outputs data. Text output prints data with its default format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.isJSON() {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error. Text output shows details only when verbose.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.isJSON() {
		return f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// Outcome reports a finished run and returns the ExitError for a failed
// one. The JSON envelope carries the run ID at the top level; a failure
// keeps the whole outcome as its details.
func (f *OutputFormatter) Outcome(outcome engine.RunOutcome) error {
	if f.isJSON() {
		resp := CLIResponse{Status: "ok", RunID: outcome.RunID, Data: outcome}
		if !outcome.Succeeded {
			resp = CLIResponse{
				Status: "error",
				RunID:  outcome.RunID,
				Error: &CLIError{
					Code:    string(outcome.Kind()),
					Message: outcome.Message,
					Details: outcome,
				},
			}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		f.outcomeText(outcome)
	}

	if outcome.Succeeded {
		return nil
	}
	code := ExitFailure
	if outcome.FailureStage == engine.StageConfiguration {
		code = ExitCommandError
	}
	return NewExitError(code, fmt.Sprintf("run %s failed at %s: %s", outcome.RunID, outcome.FailureStage, outcome.Message))
}

func (f *OutputFormatter) outcomeText(outcome engine.RunOutcome) {
	w := f.Writer
	if outcome.Succeeded {
		fmt.Fprintf(w, "✓ Run %s: %s\n", outcome.RunID, outcome.Message)
	} else {
		fmt.Fprintf(w, "Error [%s]: %s\n", outcome.Kind(), outcome.Message)
		fmt.Fprintf(w, "  run %s stopped at %s\n", outcome.RunID, outcome.FailureStage)
		if f.Verbose && outcome.Error != "" {
			fmt.Fprintf(w, "  %s\n", outcome.Error)
		}
	}

	switch {
	case outcome.Spatial:
		fmt.Fprintf(w, "  %d point rows, %d polygon rows\n", outcome.RowCounts.Point, outcome.RowCounts.Poly)
	case outcome.RowCounts.Flat > 0 || outcome.Succeeded:
		fmt.Fprintf(w, "  %d rows\n", outcome.RowCounts.Flat)
	}
	for _, a := range outcome.Artifacts {
		fmt.Fprintf(w, "  %s (%s, %d rows)\n", a.Path, a.Part, a.Rows)
	}
	if outcome.CleanupError != "" {
		fmt.Fprintf(w, "  Cleanup failed: %s\n", outcome.CleanupError)
	}
	f.VerboseLog("States: %v", outcome.States)
}
