package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Graph errors (GRAPH-001 to GRAPH-099)
	ErrCodeGraphUnknownRepo ErrorCode = "GRAPH-001"
	ErrCodeGraphCycle       ErrorCode = "GRAPH-002"
	ErrCodeGraphDuplicate   ErrorCode = "GRAPH-003"
	ErrCodeGraphMissingDep  ErrorCode = "GRAPH-004"

	// Impact analysis errors (IMPACT-001 to IMPACT-099)
	ErrCodeImpactUnknownRepo ErrorCode = "IMPACT-001"

	// Circuit breaker errors (BREAKER-001 to BREAKER-099)
	ErrCodeBreakerOpen    ErrorCode = "BREAKER-001"
	ErrCodeBreakerTimeout ErrorCode = "BREAKER-002"

	// Retry errors (RETRY-001 to RETRY-099)
	ErrCodeRetryExhausted ErrorCode = "RETRY-001"

	// Scheduler errors (SCHED-001 to SCHED-099)
	ErrCodeSchedUnknownCategory ErrorCode = "SCHED-001"
	ErrCodeSchedQueueClosed     ErrorCode = "SCHED-002"
	ErrCodeSchedBatchFailed     ErrorCode = "SCHED-003"
	ErrCodeSchedKeyEncoding     ErrorCode = "SCHED-004"

	// Git errors (GIT-001 to GIT-099)
	ErrCodeGitCommandFailed ErrorCode = "GIT-001"
	ErrCodeGitRepoMissing   ErrorCode = "GIT-002"
	ErrCodeGitBranchExists  ErrorCode = "GIT-003"
	ErrCodeGitInvalidBranch ErrorCode = "GIT-004"

	// Quality gate errors (GATE-001 to GATE-099)
	ErrCodeGateCommandMissing ErrorCode = "GATE-001"
	ErrCodeGateCheckFailed    ErrorCode = "GATE-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound  ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid   ErrorCode = "CONFIG-002"
	ErrCodeConfigUnmarshal ErrorCode = "CONFIG-003"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound   ErrorCode = "PROVIDER-001"
	ErrCodeProviderDuplicate  ErrorCode = "PROVIDER-002"
	ErrCodeProviderCapability ErrorCode = "PROVIDER-003"
)

// CoordError represents an enhanced error with code, suggestions, and documentation
type CoordError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *CoordError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *CoordError) Unwrap() error {
	return e.Cause
}

// New creates a new CoordError
func New(code ErrorCode, message string) *CoordError {
	return &CoordError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new CoordError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *CoordError {
	return &CoordError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *CoordError) WithSuggestion(suggestion string) *CoordError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *CoordError) WithSuggestions(suggestions ...string) *CoordError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *CoordError) WithDocs(url string) *CoordError {
	e.DocsURL = url
	return e
}

// CodeOf returns the error code carried by err, or the empty code when err
// is not a CoordError.
func CodeOf(err error) ErrorCode {
	var ce *CoordError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsConfiguration reports whether err is a fatal configuration error.
// Configuration errors are surfaced immediately and never retried.
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case ErrCodeGraphCycle, ErrCodeGraphMissingDep, ErrCodeGraphDuplicate,
		ErrCodeGateCommandMissing,
		ErrCodeConfigNotFound, ErrCodeConfigInvalid, ErrCodeConfigUnmarshal:
		return true
	}
	return false
}

// Common error constructors for frequently used errors

// NewCycleError creates a dependency cycle error naming the offending repository
func NewCycleError(repoID string) *CoordError {
	return New(ErrCodeGraphCycle, fmt.Sprintf("dependency cycle detected involving repository: %s", repoID)).
		WithSuggestion("Review the declared dependencies in the repository table").
		WithSuggestion("Remove one edge of the cycle so the graph forms a DAG")
}

// NewUnknownRepoError creates an unknown repository error
func NewUnknownRepoError(repoID string) *CoordError {
	return New(ErrCodeGraphUnknownRepo, fmt.Sprintf("unknown repository: %s", repoID)).
		WithSuggestion("Run 'loqa-coord order' to list known repositories").
		WithSuggestion("Check the repository identifier for typos")
}

// NewCircuitOpenError creates a breaker-open rejection error.
// Distinguishable from a genuine operation failure so callers can fall back.
func NewCircuitOpenError(operation string) *CoordError {
	return New(ErrCodeBreakerOpen, fmt.Sprintf("circuit breaker is open for operation: %s", operation)).
		WithSuggestion("Wait for the recovery timeout to elapse before retrying").
		WithSuggestion("Check remote service health with 'loqa-coord health'")
}

// IsCircuitOpen reports whether err is a breaker-open rejection.
func IsCircuitOpen(err error) bool {
	return CodeOf(err) == ErrCodeBreakerOpen
}

// NewGateCommandMissingError creates a missing quality-check command error
func NewGateCommandMissingError(repoID, check string) *CoordError {
	return New(ErrCodeGateCommandMissing, fmt.Sprintf("quality check %q for repository %s has no command configured", check, repoID)).
		WithSuggestion("Add a command for the check in the coordinator config file").
		WithSuggestion("Remove the check from the repository's required list if it no longer applies").
		WithDocs("https://github.com/loqalabs/loqa-coordinator#quality-gates")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *CoordError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check the coordinator config file syntax").
		WithDocs("https://github.com/loqalabs/loqa-coordinator#configuration")
}

// NewRetryExhaustedError creates an error for an operation that failed all attempts
func NewRetryExhaustedError(attempts int, cause error) *CoordError {
	return Wrap(ErrCodeRetryExhausted, fmt.Sprintf("all retry attempts failed (tried %d times)", attempts), cause).
		WithSuggestion("Check remote service availability").
		WithSuggestion("Inspect rate-limit state with 'loqa-coord ratelimit'")
}

// NewProviderCapabilityError creates an error for an unsupported provider operation
func NewProviderCapabilityError(provider, capability string) *CoordError {
	return New(ErrCodeProviderCapability, fmt.Sprintf("provider %s does not support capability: %s", provider, capability)).
		WithSuggestion("Select a provider that advertises the capability").
		WithSuggestion("Run 'loqa-coord health' to list provider capabilities")
}
