package cmd

import (
	"errors"

	"class-patcher/internal/archive"
	"class-patcher/internal/config"
	"class-patcher/internal/convert"
	"class-patcher/internal/ledger"
	"class-patcher/internal/rewrite"
	"class-patcher/internal/validate"
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Err  error
	Code int
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given error and exit code.
func NewExitError(err error, code int) *ExitError {
	return &ExitError{Err: err, Code: code}
}

// ExitCodeFromError determines the appropriate exit code for an error.
func ExitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		convErr    *convert.ConversionError
		archiveErr *archive.ArchiveIOError
		ledgerErr  *ledger.LedgerIOError
	)
	switch {
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigError
	case errors.As(err, &convErr):
		return ExitConversionError
	case errors.As(err, &archiveErr), errors.As(err, &ledgerErr):
		return ExitIOError
	case errors.Is(err, validate.ErrInvalid):
		return ExitValidationError
	case rewrite.IsMalformed(err):
		return ExitMalformed
	default:
		return ExitGeneralError
	}
}
