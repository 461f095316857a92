// Package errors defines the sentinel errors shared by every pipeline stage
// and maps them to process exit codes for the command-line tools.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrPrecondition     = errors.New("precondition violated")
	ErrDuplicateBatch   = errors.New("duplicate shard batch id")
	ErrIncompleteShards = errors.New("incomplete shard set")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSchemaMismatch   = errors.New("schema mismatch")
	ErrUnknownField     = errors.New("unknown field")
	ErrTimeout          = errors.New("operation timed out")
)

// Exit codes returned by the command-line tools.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitUsage     = 2
	ExitIntegrity = 3
)

// AppError attaches the identity of the failing unit of work (a haul key, a
// field name, a store path) to a sentinel error.
type AppError struct {
	Err      error
	Identity string
	Message  string
}

func (e *AppError) Error() string {
	if e.Identity == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Err.Error(), e.Identity, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, identity string, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Identity: identity,
		Message:  message,
	}
}

func Newf(sentinel error, identity string, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Identity: identity,
		Message:  fmt.Sprintf(format, args...),
	}
}

// IsIntegrity reports whether err threatens the correctness of a canonical
// index and must stop the run.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrDuplicateBatch) ||
		errors.Is(err, ErrIncompleteShards)
}

// Identity returns the identity recorded on the first AppError in err's
// chain, or "" if there is none.
func Identity(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Identity
	}
	return ""
}

func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownField):
		return ExitUsage
	case IsIntegrity(err):
		return ExitIntegrity
	default:
		return ExitFailure
	}
}
