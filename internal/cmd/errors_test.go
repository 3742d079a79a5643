package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"class-patcher/internal/archive"
	"class-patcher/internal/config"
	"class-patcher/internal/convert"
	"class-patcher/internal/ledger"
	"class-patcher/internal/rewrite"
	"class-patcher/internal/validate"
)

func TestExitCodeFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitGeneralError},
		{"exit error", NewExitError(errors.New("x"), 42), 42},
		{"invalid config", fmt.Errorf("%w: applicationName is required", config.ErrInvalid), ExitConfigError},
		{"conversion", &convert.ConversionError{Tool: "dx", ExitCode: 1, Err: errors.New("exit 1")}, ExitConversionError},
		{"archive", fmt.Errorf("build: %w", &archive.ArchiveIOError{Op: "open", Path: "a.jar", Err: errors.New("x")}), ExitIOError},
		{"ledger", &ledger.LedgerIOError{Op: "write", Path: "hex.txt", Err: errors.New("x")}, ExitIOError},
		{"invalid patch", fmt.Errorf("%w:\nentries[0] (x): not a class file", validate.ErrInvalid), ExitValidationError},
		{"malformed", &rewrite.MalformedModuleError{Err: errors.New("x")}, ExitMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFromError(tt.err))
		})
	}
}

func TestExitCodeName(t *testing.T) {
	assert.Equal(t, "I/O Error", ExitCodeName(ExitIOError))
	assert.Equal(t, "Unknown", ExitCodeName(99))
}
