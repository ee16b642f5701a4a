// Package gatewayerr provides the gateway's closed set of typed error
// kinds (distilled spec §7), wrapped in the stdlib idiom the teacher
// already uses throughout (fmt.Errorf("...: %w", err)). It is a thin
// errors/Unwrap wrapper, not a replacement for any pack dependency — no
// teacher or pack example ships an identical typed-error-kind enum, so
// this one is grounded directly on the distilled spec's literal error
// kind list rather than on a specific source file.
package gatewayerr

import (
	"errors"
	"fmt"

	"github.com/gatekit/gatekit/internal/policy"
)

// Kind is the closed set of error kinds the gateway ever surfaces,
// per distilled spec §7.
type Kind string

const (
	KindCallableNotFound       Kind = "callable_not_found"
	KindInvalidQuery           Kind = "invalid_query"
	KindInvalidConfig          Kind = "invalid_config"
	KindValidationFailed       Kind = "validation_failed"
	KindPolicyDenied           Kind = "policy_denied"
	KindTimeout                Kind = "timeout"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
	KindUpstreamProtocolError  Kind = "upstream_protocol_error"
	KindUpstreamRequestFailed  Kind = "upstream_request_failed"
	KindSandboxUnavailable     Kind = "sandbox_unavailable"
	KindSandboxExecutionFailed Kind = "sandbox_execution_failed"
	KindIOError                Kind = "io_error"
)

// Error is the gateway's typed error, carrying whatever facade-visible
// detail its Kind needs (required_consent for policy_denied, backend for
// sandbox_unavailable) alongside a human-readable reason and an optional
// wrapped cause.
type Error struct {
	Kind            Kind
	Message         string
	RequiredConsent *policy.ConsentLevel
	Backend         string
	Cause           error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a bare Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying cause, following the teacher's
// fmt.Errorf("...: %w", err) idiom but preserving the typed Kind for the
// facade to translate into a protocol error code.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// NotFound builds a callable_not_found error.
func NotFound(id string) *Error {
	return New(KindCallableNotFound, fmt.Sprintf("callable not found: %s", id))
}

// ValidationFailed builds a validation_failed error.
func ValidationFailed(message string) *Error {
	return New(KindValidationFailed, message)
}

// PolicyDenied builds a policy_denied error, optionally carrying the
// consent level the caller would need to retry with.
func PolicyDenied(reason string, required *policy.ConsentLevel) *Error {
	return &Error{Kind: KindPolicyDenied, Message: reason, RequiredConsent: required}
}

// Timeout builds a timeout error.
func Timeout(ms int64) *Error {
	return New(KindTimeout, fmt.Sprintf("execution timed out after %dms", ms))
}

// SandboxUnavailable builds a sandbox_unavailable error for backend.
func SandboxUnavailable(backend, reason string) *Error {
	return &Error{Kind: KindSandboxUnavailable, Message: reason, Backend: backend}
}

// SandboxExecutionFailed builds a sandbox_execution_failed error.
func SandboxExecutionFailed(detail string) *Error {
	return New(KindSandboxExecutionFailed, detail)
}

// UpstreamRequestFailed wraps cause as an upstream_request_failed error.
func UpstreamRequestFailed(cause error) *Error {
	return Wrap(KindUpstreamRequestFailed, "upstream tool call failed", cause)
}

// As extracts an *Error from err via errors.As, for callers translating
// to a protocol-level response.
func As(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// jsonRPCBase is the start of the -32000-range JSON-RPC error code band
// this package's Kinds map into, counting down one code per Kind. It
// leaves -32000..-32009, just above it, free; the standard JSON-RPC codes
// the gateway's transport layer defines are -32700..-32603.
const jsonRPCBase = -32010

var kindOrder = []Kind{
	KindCallableNotFound,
	KindInvalidQuery,
	KindInvalidConfig,
	KindValidationFailed,
	KindPolicyDenied,
	KindTimeout,
	KindUpstreamUnavailable,
	KindUpstreamProtocolError,
	KindUpstreamRequestFailed,
	KindSandboxUnavailable,
	KindSandboxExecutionFailed,
	KindIOError,
}

// JSONRPCCode maps a Kind onto a stable code in the -32010.. band, one
// slot per kind in kindOrder's declaration sequence.
func (k Kind) JSONRPCCode() int {
	for i, kind := range kindOrder {
		if kind == k {
			return jsonRPCBase - i
		}
	}
	return jsonRPCBase
}

// KindFromJSONRPCCode is JSONRPCCode's inverse, letting a remote caller
// (the CLI talking to gatekitd over HTTP) reconstruct the typed Kind a
// JSON-RPC error code came from, rather than falling back to string
// sniffing once the error crosses the wire.
func KindFromJSONRPCCode(code int) (Kind, bool) {
	i := jsonRPCBase - code
	if i < 0 || i >= len(kindOrder) {
		return "", false
	}
	return kindOrder[i], true
}
