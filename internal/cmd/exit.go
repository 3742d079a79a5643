// Package cmd provides command implementations for the class-patcher CLI.
package cmd

// Exit codes returned by the CLI.
const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitConfigError indicates the configuration cannot drive a build.
	ExitConfigError = 2

	// ExitIOError indicates the ledger or a jar could not be read or written.
	ExitIOError = 3

	// ExitConversionError indicates the external converter failed.
	ExitConversionError = 4

	// ExitMalformed indicates a class given to inspect could not be decoded.
	ExitMalformed = 5

	// ExitValidationError indicates the finished patch failed validation.
	ExitValidationError = 6
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitConfigError:
		return "Configuration Error"
	case ExitIOError:
		return "I/O Error"
	case ExitConversionError:
		return "Conversion Error"
	case ExitMalformed:
		return "Malformed Class"
	case ExitValidationError:
		return "Validation Error"
	default:
		return "Unknown"
	}
}
