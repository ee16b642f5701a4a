// Package errors classifies a CLI call failure into a CLI exit code (0
// success, 1 user error, 2 execution error, per distilled spec §6) plus a
// human hint. Grounded on the teacher's internal/cli/errors.Classify,
// generalized from its string-sniffed HTTP/auth/offline buckets to prefer
// the typed gatewayerr.Kind when the daemon returned one, falling back to
// string-sniffing only for transport-layer failures the Kind enum can't see
// (connection refused, process exit).
package errors

import (
	"strings"

	"github.com/gatekit/gatekit/internal/gatewayerr"
)

// ErrorKind buckets a failure for display and exit-code purposes.
type ErrorKind string

const (
	KindUserError      ErrorKind = "user_error"
	KindExecutionError ErrorKind = "execution_error"
	KindOffline        ErrorKind = "offline"
	KindOther          ErrorKind = "other"
)

// ClassifiedError is a CLI-facing, display-ready error.
type ClassifiedError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Hint     string     `json:"hint,omitempty"`
	ExitCode int        `json:"-"`
	Raw      error      `json:"-"`
}

func (e ClassifiedError) Error() string {
	return e.Message
}

// Classify maps err onto a ClassifiedError. Callers use ExitCode directly
// as the process exit status.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{}
	}

	if ge, ok := gatewayerr.As(err); ok {
		return classifyGatewayErr(ge)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "econnrefused") || strings.Contains(msg, "no such host"):
		return ClassifiedError{
			Kind:     KindOffline,
			Message:  err.Error(),
			Hint:     "Is gatekitd running? Try 'gatekit status' or start it, or pass --direct to skip the daemon.",
			ExitCode: 2,
			Raw:      err,
		}
	case strings.Contains(msg, "exit status") || strings.Contains(msg, "signal:"):
		return ClassifiedError{
			Kind:     KindExecutionError,
			Message:  err.Error(),
			Hint:     "The upstream or sandboxed process exited unexpectedly. Check gatekitd's logs.",
			ExitCode: 2,
			Raw:      err,
		}
	default:
		return ClassifiedError{
			Kind:     KindOther,
			Message:  err.Error(),
			Hint:     "An unexpected error occurred.",
			ExitCode: 2,
			Raw:      err,
		}
	}
}

// classifyGatewayErr maps a typed gatewayerr.Error onto exit codes 1 (user
// error: the caller asked for something malformed or nonexistent) or 2
// (execution error: the thing existed and failed to run).
func classifyGatewayErr(ge *gatewayerr.Error) ClassifiedError {
	switch ge.Kind {
	case gatewayerr.KindCallableNotFound, gatewayerr.KindInvalidQuery, gatewayerr.KindInvalidConfig, gatewayerr.KindValidationFailed:
		return ClassifiedError{
			Kind:     KindUserError,
			Message:  ge.Error(),
			Hint:     "Check the id/query/arguments you passed; try 'gatekit search' to list valid ids.",
			ExitCode: 1,
			Raw:      ge,
		}
	case gatewayerr.KindPolicyDenied:
		hint := "This call requires explicit consent; gatekit exec sends no consent level, so it cannot run consent-gated callables."
		return ClassifiedError{Kind: KindUserError, Message: ge.Error(), Hint: hint, ExitCode: 1, Raw: ge}
	case gatewayerr.KindTimeout, gatewayerr.KindUpstreamUnavailable, gatewayerr.KindUpstreamProtocolError,
		gatewayerr.KindUpstreamRequestFailed, gatewayerr.KindSandboxUnavailable, gatewayerr.KindSandboxExecutionFailed,
		gatewayerr.KindIOError:
		return ClassifiedError{
			Kind:     KindExecutionError,
			Message:  ge.Error(),
			Hint:     "The tool or skill itself failed to run; see gatekitd's logs for the upstream/sandbox detail.",
			ExitCode: 2,
			Raw:      ge,
		}
	default:
		return ClassifiedError{Kind: KindOther, Message: ge.Error(), ExitCode: 2, Raw: ge}
	}
}
