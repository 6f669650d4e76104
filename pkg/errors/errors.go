// Package errors provides structured error types for npmunifier.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the library and the CLI
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input and precondition failures
//   - *_NOT_FOUND: Resource not found
//   - LAUNCH_FAILURE, CANCELED: Process boundary failures
//   - INTERNAL_*: Unexpected internal errors
//
// A nonzero exit status of an external package manager is never an error.
// It is returned as an ordinary value by the runner.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeNotADirectory, "not a directory: %s", path)
//	if errors.Is(err, errors.ErrCodeNotADirectory) {
//	    // Handle precondition failure
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeLaunchFailure, origErr, "start %s", bin)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Precondition and input errors
	ErrCodeInvalidInput            Code = "INVALID_INPUT"
	ErrCodeInvalidWorkingDirectory Code = "INVALID_WORKING_DIRECTORY"
	ErrCodeNotADirectory           Code = "NOT_A_DIRECTORY"
	ErrCodeInvalidConfig           Code = "INVALID_CONFIG"
	ErrCodeInvalidManifest         Code = "INVALID_MANIFEST"
	ErrCodeInvalidPackage          Code = "INVALID_PACKAGE"

	// Resource not found errors
	ErrCodeManifestNotFound Code = "MANIFEST_NOT_FOUND"
	ErrCodeConfigNotFound   Code = "CONFIG_NOT_FOUND"

	// Manifest content errors
	ErrCodeManifestParse Code = "MANIFEST_PARSE_ERROR"

	// Package manager errors
	ErrCodeUnsupportedCommand    Code = "UNSUPPORTED_COMMAND"
	ErrCodeUnknownPackageManager Code = "UNKNOWN_PACKAGE_MANAGER"
	ErrCodeNoPackageManager      Code = "NO_PACKAGE_MANAGER"

	// Process errors
	ErrCodeLaunchFailure Code = "LAUNCH_FAILURE"
	ErrCodeCanceled      Code = "CANCELED"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// coder is implemented by error types that carry a code without being an *Error.
type coder interface {
	Code() Code
}

// Is reports whether err has the given error code.
// It walks the error chain looking for an *Error or a typed error with a
// matching code. The outermost coded error wins.
func Is(err error, code Code) bool {
	return GetCode(err) == code && code != ""
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if no error in the chain carries a code.
func GetCode(err error) Code {
	for err != nil {
		switch e := err.(type) {
		case *Error:
			return e.Code
		case coder:
			return e.Code()
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// UnsupportedCommandError is returned when a logical command is not in a
// package manager's allow-list. It is recoverable: Suggestions holds the
// closest registered names, best match first.
type UnsupportedCommandError struct {
	Manager     string   // Variant name (e.g., "yarn")
	Command     string   // Command as requested by the caller
	Suggestions []string // Registered commands resembling Command
}

// Error implements the error interface.
func (e *UnsupportedCommandError) Error() string {
	msg := fmt.Sprintf("%s: %s does not support command %q", ErrCodeUnsupportedCommand, e.Manager, e.Command)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// Code returns the error code for this error type.
func (e *UnsupportedCommandError) Code() Code {
	return ErrCodeUnsupportedCommand
}
