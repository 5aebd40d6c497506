package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-logr/logr"
)

const (
	// ExitSynced is returned when every target converged
	ExitSynced = 0
	// ExitError is returned when any target ended in Error after retries
	ExitError = 1
	// ExitInvalidArguments is returned on invalid command line arguments
	ExitInvalidArguments = 2
	// ExitNotConverged is returned when targets are Unknown or OutOfSync without errors
	ExitNotConverged = 3
)

// ExitCodeError carries the exit code a command should terminate with
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	return e.Err
}

// WithExitCode wraps err so that CheckError terminates with code
func WithExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &ExitCodeError{Code: code, Err: err}
}

// ExitCode returns the exit code carried by err, ExitError for other non-nil errors and ExitSynced for nil
func ExitCode(err error) int {
	if err == nil {
		return ExitSynced
	}
	var exitErr *ExitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitError
}

// CheckError logs a fatal message and exits with the exit code of err if err is not nil
func CheckError(err error, log logr.Logger) {
	if err != nil {
		Fatal(log, ExitCode(err), err)
	}
}

// Fatal is a helper to exit with custom code.
func Fatal(log logr.Logger, exitcode int, err error) {
	log.Error(err, "Fatal error", "exitCode", exitcode)
	os.Exit(exitcode)
}
