package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/warden/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected write, invalid specs, failed scenarios
	ExitCommandError = 2 // Command error (bad flags, missing files, database errors)
)

// ExitError carries the process exit code for a failed command.
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
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response codes for rejected writes, keyed by outcome.
const (
	CodeValidation  = "E_VALIDATION"
	CodeReferential = "E_REFERENTIAL"
	CodeNotFound    = "E_NOT_FOUND"
	CodeInternal    = "E_INTERNAL"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose output; defaults to Writer
	Verbose   bool
}

func newFormatter(opts *RootOptions, out, errOut io.Writer) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   opts.Verbose,
	}
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Rejection reports a failed write and returns the ExitError for it.
// Rejections by a constraint or rule exit with ExitFailure; anything else
// is a command error.
func (f *OutputFormatter) Rejection(action string, d engine.Detail) error {
	code, exit := rejectionCode(d.Outcome)
	message := rejectionMessage(d)
	if f.Format == "json" {
		if err := f.encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: d},
		}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %s rejected [%s]: %s\n", action, code, message)
		if len(d.Params) > 0 {
			fmt.Fprintf(f.Writer, "  params: %v\n", d.Params)
		}
		if d.Committed {
			fmt.Fprintln(f.Writer, "  note: the write was committed before the post rule ran")
		}
	}
	return NewExitError(exit, fmt.Sprintf("%s: %s", code, message))
}

func rejectionCode(o engine.Outcome) (string, int) {
	switch o {
	case engine.OutcomeValidation:
		return CodeValidation, ExitFailure
	case engine.OutcomeReferential:
		return CodeReferential, ExitFailure
	case engine.OutcomeNotFound:
		return CodeNotFound, ExitFailure
	default:
		return CodeInternal, ExitCommandError
	}
}

func rejectionMessage(d engine.Detail) string {
	switch {
	case d.Rule != "":
		return fmt.Sprintf("rule %s: %s", d.Rule, d.Message)
	case d.Property != "":
		return fmt.Sprintf("%s on %s: %s", d.Constraint, d.Property, d.Message)
	case d.Error != "":
		return d.Error
	default:
		return string(d.Outcome)
	}
}

func (f *OutputFormatter) encode(resp CLIResponse) error {
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// In JSON mode it goes to ErrWriter so stdout stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
