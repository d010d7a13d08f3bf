// Package exitcode provides standardized exit codes for picshelf
package exitcode

import "errors"

// Exit codes for the picshelf CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
)

// Coder is implemented by errors that carry their own exit code.
type Coder interface {
	ExitCode() int
}

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	default:
		return "Unknown error"
	}
}

// FromError maps an error returned by a command to a process exit code.
// A nil error is Success; errors without an embedded code are GeneralError.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return GeneralError
}

// codedError attaches an exit code to an underlying error.
type codedError struct {
	code int
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }
func (e *codedError) ExitCode() int { return e.code }

// WithCode wraps err so that FromError reports code for it.
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}
