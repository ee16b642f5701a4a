package sandbox

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteTimeoutCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix shell")
	}
	cfg := Default()
	cfg.TimeoutMS = 5000
	sb := New(cfg)

	result, err := sb.Execute(context.Background(), "/bin/echo", []string{"hello"}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.False(t, result.TimedOut)
	assert.Equal(t, 0, result.ExitCode)
}

func TestExecuteTimeoutEnforced(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix shell")
	}
	cfg := Default()
	cfg.TimeoutMS = 50
	sb := New(cfg)

	result, err := sb.Execute(context.Background(), "/bin/sleep", []string{"5"}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestExecuteNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a unix shell")
	}
	cfg := Default()
	sb := New(cfg)

	result, err := sb.Execute(context.Background(), "/bin/sh", []string{"-c", "exit 7"}, t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

func TestOverrideResolvePrecedence(t *testing.T) {
	base := Default()
	timeoutOverride := int64(9999)
	serverOverride := &Override{TimeoutMS: &timeoutOverride}

	strictPreset := PresetStrict
	toolOverride := &Override{Preset: &strictPreset}

	resolved := ForTool(base, serverOverride, toolOverride)
	assert.Equal(t, BackendBubblewrap, resolved.Backend, "tool preset should win over server override")
	assert.EqualValues(t, 10000, resolved.TimeoutMS)
}

func TestOverrideExtendsPathsRatherThanReplacing(t *testing.T) {
	base := Filesystem([]string{"/a"}, []string{"/b"})
	override := &Override{AllowRead: []string{"/c"}}

	resolved := override.Resolve(base)
	assert.ElementsMatch(t, []string{"/a", "/c"}, resolved.AllowRead)
}

func TestBubblewrapUnavailableReturnsTypedError(t *testing.T) {
	cfg := Strict()
	cfg.TimeoutMS = int64(time.Second.Milliseconds())
	sb := New(cfg)

	_, err := sb.Execute(context.Background(), "true", nil, t.TempDir(), nil)
	if err == nil {
		t.Skip("bwrap is installed on this host; nothing to assert")
	}
	var notAvail *NotAvailableError
	assert.ErrorAs(t, err, &notAvail)
}
