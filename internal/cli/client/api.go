// Package client is the CLI's thin transport to a running gatekitd: JSON-RPC
// tools/call requests over HTTP for the four facade meta-tools, plus the
// control-surface GET /status for servers/skills/status listings. Grounded
// on the teacher's internal/cli/client.ControlClient, generalized from its
// bespoke /api/* REST verbs onto gatekit's MCP JSON-RPC + control-surface
// split.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/gatewayerr"
	"github.com/gatekit/gatekit/internal/policy"
)

// GatewayClient talks to one gatekitd instance over HTTP.
type GatewayClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewGatewayClient builds a GatewayClient. timeout bounds every request,
// including exec() calls that run an upstream tool or sandboxed skill.
func NewGatewayClient(baseURL, apiKey string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// rpcRequest is the minimal shape GatewayClient sends; gateway.Request's ID
// field accepts any JSON value, so a fixed literal is fine for a
// request/response-per-connection CLI client.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// asGatewayErr reconstructs the daemon's typed gatewayerr.Error from a
// JSON-RPC error's code (and, for policy_denied, its required_consent
// data), so internal/cli/errors.Classify can key off Kind across the
// wire the same way it does for an in-process --direct call.
func (e *rpcError) asGatewayErr() error {
	kind, ok := gatewayerr.KindFromJSONRPCCode(e.Code)
	if !ok {
		return fmt.Errorf("%s", e.Message)
	}
	ge := &gatewayerr.Error{Kind: kind, Message: e.Message}
	if kind == gatewayerr.KindPolicyDenied && len(e.Data) > 0 {
		var data struct {
			RequiredConsent string `json:"required_consent"`
		}
		if json.Unmarshal(e.Data, &data) == nil && data.RequiredConsent != "" {
			level := policy.ParseConsentLevel(data.RequiredConsent)
			ge.RequiredConsent = &level
		}
	}
	return ge
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// callTool issues one tools/call for name with args, decoding the MCP
// content-array result's first text block's JSON payload into out.
func (c *GatewayClient) callTool(ctx context.Context, name string, args interface{}, out interface{}) error {
	params := map[string]interface{}{"name": name, "arguments": args}
	resp, err := c.rpc(ctx, "tools/call", params)
	if err != nil {
		return err
	}

	var result catalog.ToolResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("client: decode tools/call result: %w", err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return fmt.Errorf("%s: %s", name, msg)
	}
	if out == nil || len(result.Content) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Content[0].Text), out)
}

func (c *GatewayClient) rpc(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("client: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error.asGatewayErr()
	}
	return rpcResp.Result, nil
}

func (c *GatewayClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// SearchInput/SearchOutput etc. are declared here rather than imported from
// internal/gateway to keep the CLI decoupled from the daemon's in-process
// package; their JSON shapes are kept identical by construction (both sides
// are grounded on the same distilled-spec §4.8 contract).

// Search calls the search() meta-tool.
func (c *GatewayClient) Search(ctx context.Context, q, kind string, limit int) (*SearchOutput, error) {
	var out SearchOutput
	args := map[string]interface{}{"q": q}
	if kind != "" {
		args["kind"] = kind
	}
	if limit > 0 {
		args["limit"] = limit
	}
	if err := c.callTool(ctx, "search", args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Schema calls the schema() meta-tool.
func (c *GatewayClient) Schema(ctx context.Context, id, format string) (*SchemaOutput, error) {
	var out SchemaOutput
	args := map[string]interface{}{"id": id}
	if format != "" {
		args["format"] = format
	}
	if err := c.callTool(ctx, "schema", args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Exec calls the exec() meta-tool.
func (c *GatewayClient) Exec(ctx context.Context, id string, arguments map[string]interface{}, dryRun bool) (*catalog.ToolResult, error) {
	params := map[string]interface{}{"name": "exec", "arguments": map[string]interface{}{
		"id":        id,
		"arguments": arguments,
		"dry_run":   dryRun,
	}}
	resp, err := c.rpc(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}
	var result catalog.ToolResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("client: decode exec result: %w", err)
	}
	return &result, nil
}

// Manage calls the manage() meta-tool.
func (c *GatewayClient) Manage(ctx context.Context, in ManageInput) (*ManageOutput, error) {
	var out ManageOutput
	if err := c.callTool(ctx, "manage", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the control surface's /status snapshot.
func (c *GatewayClient) Status(ctx context.Context) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: unexpected status code %d", resp.StatusCode)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchOutput mirrors gateway.SearchOutput.
type SearchOutput struct {
	Matches []SearchMatchView `json:"matches"`
	Stats   struct {
		TotalCallables int `json:"total_callables"`
		TotalTools     int `json:"total_tools"`
		TotalSkills    int `json:"total_skills"`
	} `json:"stats"`
}

// SearchMatchView mirrors gateway.SearchMatchView.
type SearchMatchView struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	FQName       string   `json:"fq_name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	SchemaDigest string   `json:"schema_digest"`
	Score        int      `json:"score"`
}

// SchemaOutput mirrors gateway.SchemaOutput.
type SchemaOutput struct {
	ID         string         `json:"id"`
	JSONSchema map[string]any `json:"json_schema,omitempty"`
	Signature  string         `json:"signature,omitempty"`
}

// ManageInput mirrors gateway.ManageInput.
type ManageInput struct {
	Operation   string         `json:"operation"`
	SkillID     string         `json:"skill_id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Version     string         `json:"version,omitempty"`
	Description string         `json:"description,omitempty"`
	SkillMD     string         `json:"skill_md,omitempty"`
	UsesTools   []string       `json:"uses_tools,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Filename    string         `json:"filename,omitempty"`
}

// ManageOutput mirrors gateway.ManageOutput.
type ManageOutput struct {
	Operation string      `json:"operation"`
	SkillID   string      `json:"skill_id,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// StatusResponse mirrors gateway.statusResponse.
type StatusResponse struct {
	Stats   catalog.Stats             `json:"stats"`
	Servers []*catalog.ServerInfo     `json:"servers"`
	Skills  []*catalog.CallableRecord `json:"skills"`
}
