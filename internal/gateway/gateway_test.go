package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/gatewayerr"
	"github.com/gatekit/gatekit/internal/policy"
	"github.com/gatekit/gatekit/internal/runtime"
	"github.com/gatekit/gatekit/internal/sandbox"
	"github.com/gatekit/gatekit/internal/skillstore"
)

func newTestGateway(t *testing.T, callTool runtime.CallToolFunc) (*Gateway, *catalog.Registry) {
	t.Helper()
	reg := catalog.NewRegistry()
	search := catalog.NewSearchIndex(reg)
	eng := policy.NewPermissive()
	rt := runtime.New(reg, callTool, sandbox.Config{Backend: sandbox.BackendNone, TimeoutMS: 5000}, nil)
	store := skillstore.New(t.TempDir(), reg)
	return New(reg, search, eng, rt, store), reg
}

func registerTestTool(t *testing.T, reg *catalog.Registry) catalog.CallableId {
	t.Helper()
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string", "description": "file to read"}},
		"required":   []interface{}{"path"},
	}
	digest, err := catalog.DigestSchema(mustJSON(t, schema))
	require.NoError(t, err)

	id := catalog.NewToolId("files", "read_file", digest)
	rec := &catalog.CallableRecord{
		ID:               id,
		Kind:             catalog.KindTool,
		FQName:           catalog.FQName(catalog.KindTool, "files", "read_file"),
		Name:             "read_file",
		Title:            "Read File",
		Description:      "Reads a file from disk and returns its contents as text.",
		InputSchema:      schema,
		SchemaDigest:     digest,
		ServerAlias:      "files",
		UpstreamToolName: "read_file",
		RiskTier:         catalog.RiskReadOnly,
	}
	reg.Register(rec)
	return id
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestSearchFindsRegisteredTool(t *testing.T) {
	gw, reg := newTestGateway(t, nil)
	registerTestTool(t, reg)

	out, err := gw.Search(SearchInput{Q: "read"})
	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "files.read_file", out.Matches[0].FQName)
	assert.Len(t, out.Matches[0].SchemaDigest, 8)
	assert.Equal(t, 1, out.Stats.TotalTools)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	gw, reg := newTestGateway(t, nil)
	registerTestTool(t, reg)

	_, err := gw.Search(SearchInput{Q: ""})
	require.Error(t, err)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.KindInvalidQuery, ge.Kind)
}

func TestSchemaSynthesizesSignature(t *testing.T) {
	gw, reg := newTestGateway(t, nil)
	id := registerTestTool(t, reg)

	out, err := gw.Schema(SchemaInput{ID: string(id), Format: "both"})
	require.NoError(t, err)
	assert.Contains(t, out.Signature, "read_file(path:")
	assert.NotNil(t, out.JSONSchema)
}

func TestSchemaUnknownIDErrors(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	_, err := gw.Schema(SchemaInput{ID: "tool:srv:none::none::sd:deadbeef"})
	assert.Error(t, err)
}

func TestExecCallsUpstreamAndReturnsResult(t *testing.T) {
	var gotAlias, gotName string
	gw, reg := newTestGateway(t, func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
		gotAlias, gotName = alias, name
		return &catalog.ToolResult{Content: []catalog.ContentBlock{{Type: "text", Text: "hello"}}}, nil
	})
	id := registerTestTool(t, reg)

	result, err := gw.Exec(context.Background(), ExecInput{
		ID:        string(id),
		Arguments: map[string]interface{}{"path": "/tmp/x"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "files", gotAlias)
	assert.Equal(t, "read_file", gotName)
}

func TestExecDryRunSkipsUpstream(t *testing.T) {
	called := false
	gw, reg := newTestGateway(t, func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
		called = true
		return &catalog.ToolResult{}, nil
	})
	id := registerTestTool(t, reg)

	result, err := gw.Exec(context.Background(), ExecInput{
		ID:        string(id),
		Arguments: map[string]interface{}{"path": "/tmp/x"},
		DryRun:    true,
	})
	require.NoError(t, err)
	assert.False(t, called)
	assert.Contains(t, result.Content[0].Text, "dry run")
}

func TestExecDeniedByPolicyReturnsPolicyDeniedError(t *testing.T) {
	reg := catalog.NewRegistry()
	search := catalog.NewSearchIndex(reg)
	cfg := policy.DefaultConfig()
	cfg.DenyTags = []string{"blocked"}
	eng := policy.New(cfg)
	rt := runtime.New(reg, func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
		return &catalog.ToolResult{}, nil
	}, sandbox.Config{Backend: sandbox.BackendNone}, nil)
	store := skillstore.New(t.TempDir(), reg)
	gw := New(reg, search, eng, rt, store)

	id := registerTestTool(t, reg)
	rec, _ := reg.Get(id)
	rec.Tags = []string{"blocked"}

	result, err := gw.Exec(context.Background(), ExecInput{ID: string(id), Arguments: map[string]interface{}{"path": "/x"}})
	require.Error(t, err)
	assert.Nil(t, result)
	ge, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.KindPolicyDenied, ge.Kind)
}

func TestManageCreateGetDelete(t *testing.T) {
	gw, _ := newTestGateway(t, nil)

	_, err := gw.Manage(ManageInput{Operation: "create", Name: "greeter", Version: "1.0.0", SkillMD: "# greeter", Description: "says hello"})
	require.NoError(t, err)

	out, err := gw.Manage(ManageInput{Operation: "get", SkillID: "greeter"})
	require.NoError(t, err)
	content, ok := out.Result.(*skillstore.SkillContent)
	require.True(t, ok)
	assert.Contains(t, content.SkillMD, "# greeter")

	_, err = gw.Manage(ManageInput{Operation: "delete", SkillID: "greeter"})
	require.NoError(t, err)

	_, err = gw.Manage(ManageInput{Operation: "get", SkillID: "greeter"})
	assert.Error(t, err)
}

func TestDispatchRoutesToolsCallByName(t *testing.T) {
	gw, reg := newTestGateway(t, func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
		return &catalog.ToolResult{Content: []catalog.ContentBlock{{Type: "text", Text: "ok"}}}, nil
	})
	id := registerTestTool(t, reg)

	result, err := gw.Dispatch(context.Background(), "exec", map[string]interface{}{
		"id":        string(id),
		"arguments": map[string]interface{}{"path": "/x"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestDispatchUnknownToolErrors(t *testing.T) {
	gw, _ := newTestGateway(t, nil)
	_, err := gw.Dispatch(context.Background(), "nope", nil)
	assert.Error(t, err)
}
