package exitcode

import (
	"os"
	"strings"

	"github.com/loqalabs/loqa-coordinator/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates a fatal configuration problem (dependency
	// cycle, missing quality-gate command, malformed config file)
	ConfigError = 3

	// CircuitOpen indicates an operation was rejected by an open breaker
	CircuitOpen = 4

	// NetworkError indicates a remote call kept failing after retries
	NetworkError = 5

	// PartialFailure indicates a coordinated walk completed with at
	// least one repository failing
	PartialFailure = 6

	// Interrupted indicates the user cancelled the operation
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.IsConfiguration(err) {
		return ConfigError
	}
	if errors.IsCircuitOpen(err) {
		return CircuitOpen
	}

	switch errors.CodeOf(err) {
	case errors.ErrCodeRetryExhausted, errors.ErrCodeBreakerTimeout:
		return NetworkError
	case errors.ErrCodeGraphUnknownRepo, errors.ErrCodeImpactUnknownRepo,
		errors.ErrCodeGitInvalidBranch:
		return UsageError
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "partial failure") {
		return PartialFailure
	}
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "no such host") {
		return NetworkError
	}

	return GeneralError
}
