// Package errors provides structured error handling for hdsweep.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitNetwork    = 3 // Network or server failure
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Missing capability or insufficient funds
)

// SweepError is the structured error type for hdsweep.
type SweepError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *SweepError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SweepError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for SweepError.
func (e *SweepError) Is(target error) bool {
	var t *SweepError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &SweepError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	// Key material errors. Both are fatal and reported before any
	// network activity.
	ErrUnrecognizedKeyFormat = &SweepError{
		Code:     "UNRECOGNIZED_KEY_FORMAT",
		Message:  "the key is invalid or the format isn't recognized",
		ExitCode: ExitInput,
	}

	ErrInvalidMnemonic = &SweepError{
		Code:     "INVALID_MNEMONIC",
		Message:  "invalid mnemonic phrase",
		ExitCode: ExitInput,
	}

	// ErrHardenedFromPublic is fatal for one descriptor, not for the run.
	ErrHardenedFromPublic = &SweepError{
		Code:     "HARDENED_FROM_PUBLIC",
		Message:  "hardened derivation requires a private key",
		ExitCode: ExitPermission,
	}

	ErrReadOnlyKey = &SweepError{
		Code:     "READ_ONLY_KEY",
		Message:  "key material is public-only and cannot sign",
		ExitCode: ExitPermission,
	}

	// Protocol client errors.
	ErrConnection = &SweepError{
		Code:     "CONNECTION_ERROR",
		Message:  "connection to the server failed",
		ExitCode: ExitNetwork,
	}

	ErrProtocol = &SweepError{
		Code:     "PROTOCOL_ERROR",
		Message:  "malformed or erroring server response",
		ExitCode: ExitNetwork,
	}

	ErrTimeout = &SweepError{
		Code:     "TIMEOUT",
		Message:  "no response from the server within the deadline",
		ExitCode: ExitNetwork,
	}

	// Sweep transaction errors.
	ErrInsufficientFunds = &SweepError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "balance does not cover the transaction fee",
		ExitCode: ExitPermission,
	}

	ErrInvalidAddress = &SweepError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid destination address",
		ExitCode: ExitInput,
	}

	ErrTxRejected = &SweepError{
		Code:     "TX_REJECTED",
		Message:  "transaction rejected by the server",
		ExitCode: ExitNetwork,
	}

	ErrNoFundsFound = &SweepError{
		Code:     "NO_FUNDS_FOUND",
		Message:  "no unspent outputs discovered",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &SweepError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new SweepError with the given code and message.
func New(code, message string) *SweepError {
	return &SweepError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var se *SweepError
	if errors.As(err, &se) {
		return &SweepError{
			Code:       se.Code,
			Message:    fmt.Sprintf("%s: %s", msg, se.Message),
			Details:    se.Details,
			Suggestion: se.Suggestion,
			Cause:      err,
			ExitCode:   se.ExitCode,
		}
	}

	return &SweepError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// Classify attaches a cause to a sentinel, keeping the sentinel's code
// and exit code while preserving the underlying error chain.
func Classify(sentinel *SweepError, cause error, format string, args ...any) error {
	msg := sentinel.Message
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &SweepError{
		Code:     sentinel.Code,
		Message:  msg,
		Cause:    cause,
		ExitCode: sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var se *SweepError
	if errors.As(err, &se) {
		return &SweepError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    details,
			Suggestion: se.Suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SweepError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var se *SweepError
	if errors.As(err, &se) {
		return &SweepError{
			Code:       se.Code,
			Message:    se.Message,
			Details:    se.Details,
			Suggestion: suggestion,
			Cause:      se.Cause,
			ExitCode:   se.ExitCode,
		}
	}

	return &SweepError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var se *SweepError
	if errors.As(err, &se) {
		return se.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var se *SweepError
	if errors.As(err, &se) {
		return se.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
