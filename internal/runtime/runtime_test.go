package runtime

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/sandbox"
)

func schemaWithRequired(t *testing.T, keys ...string) map[string]any {
	t.Helper()
	raw := map[string]any{
		"type":     "object",
		"required": keys,
	}
	return raw
}

func digestFor(t *testing.T, schema map[string]any) catalog.SchemaDigest {
	t.Helper()
	b, err := json.Marshal(schema)
	require.NoError(t, err)
	d, err := catalog.DigestSchema(b)
	require.NoError(t, err)
	return d
}

func TestExecuteCallableNotFound(t *testing.T) {
	reg := catalog.NewRegistry()
	rt := New(reg, nil, sandbox.Default(), nil)

	_, err := rt.Execute(context.Background(), ExecContext{CallableID: "tool:srv:x::y::sd:deadbeef"})
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestExecuteValidationFailedOnMissingRequired(t *testing.T) {
	reg := catalog.NewRegistry()
	schema := schemaWithRequired(t, "path")
	digest := digestFor(t, schema)
	id := catalog.NewToolId("srv", "read", digest)
	reg.Register(&catalog.CallableRecord{
		ID: id, Kind: catalog.KindTool, FQName: "srv.read", Name: "read",
		InputSchema: schema, ServerAlias: "srv", UpstreamToolName: "read",
	})

	rt := New(reg, nil, sandbox.Default(), nil)
	_, err := rt.Execute(context.Background(), ExecContext{CallableID: id, Arguments: map[string]interface{}{}})
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExecuteToolCallsUpstreamAndMapsResult(t *testing.T) {
	reg := catalog.NewRegistry()
	schema := map[string]any{"type": "object"}
	digest := digestFor(t, schema)
	id := catalog.NewToolId("srv", "ping", digest)
	reg.Register(&catalog.CallableRecord{
		ID: id, Kind: catalog.KindTool, FQName: "srv.ping", Name: "ping",
		InputSchema: schema, ServerAlias: "srv", UpstreamToolName: "ping",
	})

	called := false
	callTool := func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
		called = true
		assert.Equal(t, "srv", alias)
		assert.Equal(t, "ping", name)
		return &catalog.ToolResult{Content: []catalog.ContentBlock{{Type: "text", Text: "pong"}}}, nil
	}

	rt := New(reg, callTool, sandbox.Default(), nil)
	result, err := rt.Execute(context.Background(), ExecContext{CallableID: id, Arguments: map[string]interface{}{}})
	require.NoError(t, err)
	require.True(t, called)
	assert.False(t, result.IsError)
	assert.Equal(t, "pong", result.Content[0].Text)
}

func TestExecuteSkillWithNoBundledToolsReturnsManifestInfo(t *testing.T) {
	reg := catalog.NewRegistry()
	id := catalog.NewSkillId("demo", "1.0.0")
	reg.Register(&catalog.CallableRecord{
		ID: id, Kind: catalog.KindSkill, FQName: "skill.demo", Name: "demo",
		InputSchema: map[string]any{}, SkillVersion: "1.0.0",
		Uses: []string{"srv.read"}, SkillDirectory: "/skills/demo",
	})

	rt := New(reg, nil, sandbox.Default(), nil)
	result, err := rt.Execute(context.Background(), ExecContext{CallableID: id, Arguments: map[string]interface{}{}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "no bundled tools")
}

// TestExecuteBundledToolTimeout covers scenario (D): a skill whose bundled
// tool sleeps past its timeout must report is_error=true with a
// "timed out" message well inside the exec timeout window.
func TestExecuteBundledToolTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sleep")
	}

	dir := t.TempDir()
	id := catalog.NewSkillId("slow", "1.0.0")
	reg := catalog.NewRegistry()
	reg.Register(&catalog.CallableRecord{
		ID: id, Kind: catalog.KindSkill, FQName: "skill.slow", Name: "slow",
		InputSchema:    map[string]any{},
		SkillVersion:   "1.0.0",
		SkillDirectory: dir,
		BundledTools: []catalog.BundledTool{
			{Name: "sleep", Command: []string{"/bin/sleep", "10"}},
		},
	})

	cfg := sandbox.Default()
	cfg.TimeoutMS = 100
	rt := New(reg, nil, cfg, nil)

	result, err := rt.Execute(context.Background(), ExecContext{CallableID: id, Arguments: map[string]interface{}{}, TimeoutMS: 100})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "timed out")
}

func TestWriteAndRemoveSkillArgsTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skill_args_test.json")
	require.NoError(t, writeFile(path, []byte(`{"a":1}`)))
	_, err := os.Stat(path)
	require.NoError(t, err)
	removeFile(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
