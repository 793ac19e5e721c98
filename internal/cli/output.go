package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/roach88/govsync/internal/engine"
)

// Process exit codes.
const (
	ExitOK     = 0
	ExitHalted = 1 // ingestion halted, sync or scenario failed
	ExitSetup  = 2 // bad flags or config, missing database, unreadable scenario
)

// Error codes reported in error responses. Ingestion failures report the
// engine's code (INVARIANT_VIOLATION, STORE_FAILURE, DECODE_FAILURE)
// instead.
const (
	CodeSetup      = "E_SETUP"
	CodeHalted     = "E_HALTED"
	CodeTransport  = "E_TRANSPORT"
	CodeTestFailed = "E_TEST_FAILED"
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code    int
	Reason  string // error code for responses; derived from Err when empty
	Message string
	Err     error
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

// GetExitCode extracts the exit code from an error. Errors that are not
// an ExitError exit with ExitHalted.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitHalted
}

// ErrorCode names the failure behind err for error responses. An
// engine.IngestError anywhere in the chain wins over the exit code.
func ErrorCode(err error) string {
	var ie *engine.IngestError
	if errors.As(err, &ie) {
		return string(ie.Code)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reason != "" {
		return exitErr.Reason
	}
	if engine.IsTransportError(err) {
		return CodeTransport
	}
	if GetExitCode(err) == ExitSetup {
		return CodeSetup
	}
	return CodeHalted
}

// errorDetails returns the block and transaction an ingestion failure
// aborted at, or nil.
func errorDetails(err error) map[string]string {
	var ie *engine.IngestError
	if !errors.As(err, &ie) {
		return nil
	}
	details := map[string]string{"slot": strconv.FormatUint(ie.Slot, 10)}
	if ie.BlockHash != "" {
		details["block"] = ie.BlockHash
	}
	if ie.TxID != "" {
		details["tx"] = ie.TxID
	}
	for k, v := range ie.Details {
		details[k] = v
	}
	return details
}

// textRenderer is implemented by results with a human-readable layout.
type textRenderer interface {
	RenderText(w io.Writer) error
}

// OutputFormatter writes command results as JSON or text.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Response is the JSON envelope of every command result.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{
			Status: "ok",
			Data:   data,
		})
	}

	if r, ok := data.(textRenderer); ok {
		return r.RenderText(f.Writer)
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error: &ErrorBody{
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

// Report outputs a command failure with its error code and, for halted
// ingestion, the slot and transaction it stopped at.
func (f *OutputFormatter) Report(err error) error {
	details := errorDetails(err)
	if details == nil {
		return f.Error(ErrorCode(err), err.Error(), nil)
	}
	return f.Error(ErrorCode(err), err.Error(), details)
}

// VerboseLog outputs a message only if verbose mode is enabled. It writes
// to ErrWriter so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
