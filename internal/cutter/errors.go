package cutter

import (
	"errors"
	"fmt"

	"github.com/smazurov/dropzone/internal/process"
)

// Error codes.
const (
	ErrCodeEncodingFailed            = "encoding_failed"
	ErrCodeHardwareFallbackExhausted = "hardware_fallback_exhausted"
	ErrCodeConcatFailed              = "concat_failed"
	ErrCodeInvalidRange              = "invalid_range"
)

// MaxStderr bounds the stderr prefix carried by errors.
const MaxStderr = 800

// Error is returned by planning and ffmpeg-backed operations.
type Error struct {
	Code    string
	Message string
	Stderr  string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func invalidRange(format string, args ...any) error {
	return &Error{Code: ErrCodeInvalidRange, Message: fmt.Sprintf(format, args...)}
}

// stderrOf extracts the captured stderr of a failed command.
func stderrOf(err error) string {
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Stderr
	}
	return ""
}

func failure(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stderr:  process.Truncate(stderrOf(cause), MaxStderr),
		Cause:   cause,
	}
}
