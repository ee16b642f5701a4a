package gatewayerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/policy"
)

func TestJSONRPCCodeIsStablePerKind(t *testing.T) {
	seen := map[int]Kind{}
	for _, kind := range kindOrder {
		code := kind.JSONRPCCode()
		existing, dup := seen[code]
		assert.False(t, dup, "code %d reused by both %q and %q", code, existing, kind)
		seen[code] = kind
		assert.Less(t, code, -32000)
	}
}

func TestUnknownKindFallsBackToBaseCode(t *testing.T) {
	assert.Equal(t, jsonRPCBase, Kind("not_a_real_kind").JSONRPCCode())
}

func TestWrapPreservesCauseThroughUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := UpstreamRequestFailed(cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, KindUpstreamRequestFailed, err.Kind)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAsRecoversKindThroughFmtErrorfWrap(t *testing.T) {
	inner := NotFound("tool:srv:files::read_file::sd:deadbeef")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	got, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindCallableNotFound, got.Kind)
}

func TestAsReturnsFalseForPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestPolicyDeniedCarriesRequiredConsent(t *testing.T) {
	level := policy.ConsentUserConfirmed
	err := PolicyDenied("writes require consent", &level)

	assert.Equal(t, KindPolicyDenied, err.Kind)
	require.NotNil(t, err.RequiredConsent)
	assert.Equal(t, policy.ConsentUserConfirmed, *err.RequiredConsent)
}

func TestSandboxUnavailableCarriesBackend(t *testing.T) {
	err := SandboxUnavailable("bubblewrap", "bwrap not found")
	assert.Equal(t, KindSandboxUnavailable, err.Kind)
	assert.Equal(t, "bubblewrap", err.Backend)
}
