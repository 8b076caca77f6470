// Package errors provides structured error handling for engine tooling.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Vocabulary errors
	CodeUnknownCommand Code = "UNKNOWN_COMMAND"

	// Engine transport errors
	CodeEngineUnavailable Code = "ENGINE_UNAVAILABLE"
	CodeEngineProtocol    Code = "ENGINE_PROTOCOL"
	CodeEngineRejected    Code = "ENGINE_REJECTED"

	// Metrics manager errors
	CodeMetricsScopeRequired      Code = "METRICS_SCOPE_REQUIRED"
	CodeMetricsInstrumentRequired Code = "METRICS_INSTRUMENT_REQUIRED"
	CodeInvalidParameters         Code = "INVALID_PARAMETERS"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Process exit codes reported by CLI entry points.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitUnavailable = 69
	ExitProtocol    = 76
)

// ExitCode maps domain codes to process exit codes.
func (c Code) ExitCode() int {
	switch c {
	// Usage - the caller asked for something that does not exist
	case CodeUnknownCommand,
		CodeMetricsScopeRequired,
		CodeMetricsInstrumentRequired,
		CodeInvalidParameters,
		CodeNotFound:
		return ExitUsage

	// Unavailable - the engine socket could not be reached
	case CodeEngineUnavailable:
		return ExitUnavailable

	// Protocol - the engine answered with something unreadable
	case CodeEngineProtocol:
		return ExitProtocol

	default:
		return ExitFailure
	}
}
