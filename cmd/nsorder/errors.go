package main

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitDatabaseError   = 2
	ExitDeviceError     = 3
	ExitHTTPServerError = 4
	ExitVerifyError     = 5
)

// =============================================================================
// CLI Error
// =============================================================================

// CLIError represents a command failure with the exit code it maps to.
type CLIError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}
