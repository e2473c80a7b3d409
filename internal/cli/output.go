package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/recwave/recwave/internal/eval"
	"github.com/recwave/recwave/internal/pipeline"
	"github.com/recwave/recwave/internal/prepare"
	"github.com/recwave/recwave/internal/session"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Evaluation/validation failure (bad expression, worker error)
	ExitCommandError = 2 // Command error (missing fixture, unreadable store, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
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

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Error code constants - unified across all CLI commands. These mirror the
// error kinds the pipeline itself reports, plus command-level codes for
// fixture and store problems.
const (
	ErrCodeGeneric           = "INTERNAL"
	ErrCodeFixture           = "FIXTURE"
	ErrCodeStore             = "STORE"
	ErrCodeEmptyExpression   = "EMPTY_EXPRESSION"
	ErrCodeSyntax            = "EXPRESSION_SYNTAX"
	ErrCodeUnknownIdentifier = "UNKNOWN_IDENTIFIER"
	ErrCodeMissingChannel    = "MISSING_CHANNEL"
	ErrCodeLengthMismatch    = "LENGTH_MISMATCH"
	ErrCodeBusy              = "BUSY"
	ErrCodeEvaluation        = "EVALUATION_FAILURE"
	ErrCodeCrash             = "WORKER_CRASH"
	ErrCodeCancelled         = "CANCELLED"
)

// ClassifyError maps a pipeline-surface error to its CLI error code.
func ClassifyError(err error) string {
	switch {
	case eval.IsEmptyExpression(err):
		return ErrCodeEmptyExpression
	case eval.IsSyntaxError(err):
		return ErrCodeSyntax
	case eval.IsUnknownIdentifier(err):
		return ErrCodeUnknownIdentifier
	case prepare.IsMissingChannel(err):
		return ErrCodeMissingChannel
	case session.IsLengthMismatch(err):
		return ErrCodeLengthMismatch
	case pipeline.IsBusy(err):
		return ErrCodeBusy
	case pipeline.IsWorkerCrash(err):
		return ErrCodeCrash
	case pipeline.IsEvaluationFailure(err):
		return ErrCodeEvaluation
	case errors.Is(err, pipeline.ErrCancelled):
		return ErrCodeCancelled
	default:
		return ErrCodeGeneric
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "UNKNOWN_IDENTIFIER", "BUSY", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
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
