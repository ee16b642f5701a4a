// Package gateway implements the four-tool facade (search, schema, exec,
// manage) the rest of the system is exposed through, plus the host-facing
// JSON-RPC surfaces (framed-stdio and HTTP) that serve it. Grounded on the
// teacher's internal/api.McpGateway request routing in
// internal/api/server.go and internal/api/mcp.go.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/gatewayerr"
	"github.com/gatekit/gatekit/internal/logger"
	"github.com/gatekit/gatekit/internal/policy"
	"github.com/gatekit/gatekit/internal/runtime"
	"github.com/gatekit/gatekit/internal/skillstore"
)

const maxDescriptionSnippet = 200

// Gateway binds the registry, search index, policy engine, execution
// runtime, and skill store into the four meta-tools a host agent actually
// calls. It holds no transport state of its own; http.go and stdio.go each
// wrap one Gateway in a protocol-specific listener.
type Gateway struct {
	registry *catalog.Registry
	search   *catalog.SearchIndex
	policy   *policy.Engine
	runtime  *runtime.Runtime
	skills   *skillstore.Store
}

// New builds a Gateway from its already-constructed collaborators.
func New(registry *catalog.Registry, search *catalog.SearchIndex, eng *policy.Engine, rt *runtime.Runtime, skills *skillstore.Store) *Gateway {
	return &Gateway{registry: registry, search: search, policy: eng, runtime: rt, skills: skills}
}

// Stats exposes the registry's catalog summary for the status/servers/
// skills control surface (HTTPServer.handleStatus, cli/client.DirectClient).
func (g *Gateway) Stats() catalog.Stats { return g.registry.Stats() }

// Servers exposes the registry's configured-upstream snapshot.
func (g *Gateway) Servers() []*catalog.ServerInfo { return g.registry.Servers() }

// Skills exposes the registry's skill-kind callables.
func (g *Gateway) Skills() []*catalog.CallableRecord { return g.registry.ByKind(catalog.KindSkill) }

// ---- search -----------------------------------------------------------

// SearchInput is search's input, per the distilled spec's §4.8 contract.
type SearchInput struct {
	Q       string                 `json:"q"`
	Kind    string                 `json:"kind,omitempty"`
	Mode    string                 `json:"mode,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Filters map[string]interface{} `json:"filters,omitempty"`
	Cursor  string                 `json:"cursor,omitempty"`
}

// SearchMatchView is one trimmed search hit: a short description snippet
// and an 8-character schema digest prefix rather than the full record.
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

// SearchStats summarizes the catalog alongside a search response.
type SearchStats struct {
	TotalCallables int      `json:"total_callables"`
	TotalTools     int      `json:"total_tools"`
	TotalSkills    int      `json:"total_skills"`
	SearchedServers int     `json:"searched_servers"`
	StaleServers   []string `json:"stale_servers,omitempty"`
}

// SearchOutput is search's output.
type SearchOutput struct {
	Matches    []SearchMatchView `json:"matches"`
	NextCursor string            `json:"next_cursor,omitempty"`
	Stats      SearchStats       `json:"stats"`
}

// Search runs one search() call, per distilled spec §4.8.
func (g *Gateway) Search(in SearchInput) (*SearchOutput, error) {
	if strings.TrimSpace(in.Q) == "" {
		return nil, gatewayerr.New(gatewayerr.KindInvalidQuery, "search: q must not be empty")
	}
	q := catalog.SearchQuery{
		Text:   in.Q,
		Cursor: in.Cursor,
		Limit:  in.Limit,
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 50 {
		q.Limit = 50
	}
	switch in.Kind {
	case "tools":
		q.Kind = catalog.KindTool
	case "skills":
		q.Kind = catalog.KindSkill
	case "", "any":
	default:
		return nil, gatewayerr.ValidationFailed(fmt.Sprintf("search: unknown kind %q", in.Kind))
	}
	if in.Filters != nil {
		if server, ok := in.Filters["server"].(string); ok {
			q.Server = server
		}
		if tags, ok := in.Filters["tags"].([]interface{}); ok {
			q.Tags = toStringSlice(tags)
		}
		if requires, ok := in.Filters["requires"].([]interface{}); ok {
			q.Requires = toStringSlice(requires)
		}
		if cap, ok := in.Filters["capability"].(string); ok {
			q.Capability = cap
		}
	}

	results := g.search.Search(q)

	matches := make([]SearchMatchView, 0, len(results.Matches))
	for _, m := range results.Matches {
		matches = append(matches, SearchMatchView{
			ID:           string(m.Record.ID),
			Kind:         string(m.Record.Kind),
			FQName:       m.Record.FQName,
			Title:        m.Record.Title,
			Description:  truncate(m.Record.Description, maxDescriptionSnippet),
			Tags:         m.Record.Tags,
			SchemaDigest: m.Record.SchemaDigest.Short(),
			Score:        m.Score,
		})
	}

	stats := g.registry.Stats()
	var staleServers []string
	servers := g.registry.Servers()
	for _, s := range servers {
		if s.Health != catalog.HealthConnected {
			staleServers = append(staleServers, s.Alias)
		}
	}

	return &SearchOutput{
		Matches:    matches,
		NextCursor: results.NextCursor,
		Stats: SearchStats{
			TotalCallables:  stats.TotalCallables,
			TotalTools:      stats.Tools,
			TotalSkills:     stats.Skills,
			SearchedServers: len(servers),
			StaleServers:    staleServers,
		},
	}, nil
}

// ---- schema -------------------------------------------------------------

// SchemaInput is schema's input.
type SchemaInput struct {
	ID                 string `json:"id"`
	Format             string `json:"format,omitempty"`
	IncludeOutputSchema bool   `json:"include_output_schema,omitempty"`
	MaxBytes           int    `json:"max_bytes,omitempty"`
	JSONPointer        string `json:"json_pointer,omitempty"`
}

// SchemaOutput is schema's output.
type SchemaOutput struct {
	ID           string         `json:"id"`
	JSONSchema   map[string]any `json:"json_schema,omitempty"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	Signature    string         `json:"signature,omitempty"`
}

// Schema runs one schema() call, per distilled spec §4.8: resolve id,
// optionally extract a JSON subtree at json_pointer, and synthesize a
// human-readable signature.
func (g *Gateway) Schema(in SchemaInput) (*SchemaOutput, error) {
	rec, ok := g.registry.Get(catalog.CallableId(in.ID))
	if !ok {
		return nil, gatewayerr.NotFound(in.ID)
	}

	format := in.Format
	if format == "" {
		format = "both"
	}
	maxBytes := in.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 50000
	}
	out := &SchemaOutput{ID: string(rec.ID)}

	schema := rec.InputSchema
	if in.JSONPointer != "" {
		extracted, err := jsonPointerLookup(schema, in.JSONPointer)
		if err != nil {
			return nil, gatewayerr.ValidationFailed(fmt.Sprintf("schema: %v", err))
		}
		if m, ok := extracted.(map[string]any); ok {
			schema = m
		} else {
			// non-object subtree: wrap so JSONSchema stays map[string]any.
			schema = map[string]any{"value": extracted}
		}
	}

	if format == "json_schema" || format == "both" {
		data, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("schema: marshal: %w", err)
		}
		if len(data) > maxBytes {
			return nil, gatewayerr.ValidationFailed(fmt.Sprintf("schema: input schema exceeds max_bytes (%d > %d)", len(data), maxBytes))
		}
		out.JSONSchema = schema
		if rec.OutputSchema != nil {
			out.OutputSchema = rec.OutputSchema
		}
	}

	if format == "signature" || format == "both" {
		out.Signature = synthesizeSignature(rec)
	}

	return out, nil
}

// synthesizeSignature builds a human-readable "name(required; optional) ->
// constraints" style summary, grounded on the distilled spec's literal
// description of schema()'s signature format (required keys, optional
// keys, per-field "type; description" constraint strings, examples).
func synthesizeSignature(rec *catalog.CallableRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s(", rec.Name)

	props, _ := rec.InputSchema["properties"].(map[string]any)
	required := map[string]bool{}
	if reqList, ok := rec.InputSchema["required"].([]interface{}); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	keys := catalog.ExtractInputKeys(rec)
	for i, key := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		if required[key] {
			fmt.Fprintf(&b, "%s", key)
		} else {
			fmt.Fprintf(&b, "%s?", key)
		}
		if props != nil {
			if field, ok := props[key].(map[string]any); ok {
				constraint := fieldConstraint(field)
				if constraint != "" {
					fmt.Fprintf(&b, ": %s", constraint)
				}
			}
		}
	}
	b.WriteString(")")
	return b.String()
}

func fieldConstraint(field map[string]any) string {
	typ, _ := field["type"].(string)
	desc, _ := field["description"].(string)
	switch {
	case typ != "" && desc != "":
		return fmt.Sprintf("%s; %s", typ, desc)
	case typ != "":
		return typ
	case desc != "":
		return desc
	default:
		return ""
	}
}

// jsonPointerLookup extracts the subtree at ptr (RFC 6901) from v.
func jsonPointerLookup(v map[string]any, ptr string) (interface{}, error) {
	if ptr == "" || ptr == "/" {
		return v, nil
	}
	if !strings.HasPrefix(ptr, "/") {
		return nil, fmt.Errorf("json_pointer must start with '/'")
	}
	tokens := strings.Split(ptr[1:], "/")
	var cur interface{} = v
	for _, tok := range tokens {
		tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[tok]
			if !ok {
				return nil, fmt.Errorf("json_pointer: no such key %q", tok)
			}
			cur = next
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(tok, "%d", &idx); err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("json_pointer: invalid array index %q", tok)
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("json_pointer: cannot descend into scalar at %q", tok)
		}
	}
	return cur, nil
}

// ---- exec -----------------------------------------------------------------

// ConsentInput carries a caller's consent assertion.
type ConsentInput struct {
	Level string `json:"level,omitempty"`
	Token string `json:"token,omitempty"`
}

// TraceInput toggles which trace detail exec returns.
type TraceInput struct {
	IncludeRoute  bool `json:"include_route,omitempty"`
	IncludeTiming bool `json:"include_timing,omitempty"`
	IncludeSteps  bool `json:"include_steps,omitempty"`
}

// ExecInput is exec's input.
type ExecInput struct {
	ID        string                 `json:"id"`
	Arguments map[string]interface{} `json:"arguments"`
	DryRun    bool                   `json:"dry_run,omitempty"`
	TimeoutMS int64                  `json:"timeout_ms,omitempty"`
	Consent   *ConsentInput          `json:"consent,omitempty"`
	Trace     *TraceInput            `json:"trace,omitempty"`
}

// Exec runs one exec() call, per distilled spec §4.8: resolve record,
// policy authorize, dry-run preview, Runtime.Execute, serialize result.
func (g *Gateway) Exec(ctx context.Context, in ExecInput) (*catalog.ToolResult, error) {
	rec, ok := g.registry.Get(catalog.CallableId(in.ID))
	if !ok {
		return nil, gatewayerr.NotFound(in.ID)
	}

	consent := policy.ConsentNone
	if in.Consent != nil {
		consent = policy.ParseConsentLevel(in.Consent.Level)
	}

	argsJSON, err := json.Marshal(in.Arguments)
	if err != nil {
		return nil, gatewayerr.ValidationFailed(fmt.Sprintf("exec: marshal arguments: %v", err))
	}

	auth := g.policy.Authorize(rec, argsJSON, consent)
	if !auth.Allowed {
		denied := gatewayerr.PolicyDenied(auth.Reason, auth.RequiredConsent)
		logger.Log("WARN", "gateway", fmt.Sprintf("exec denied for %s: %v", rec.FQName, denied))
		return nil, denied
	}

	timeoutMS, err := g.policy.CheckTimeout(in.TimeoutMS)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindInvalidQuery, err.Error())
	}

	if in.DryRun {
		return &catalog.ToolResult{
			Content: []catalog.ContentBlock{{Type: "text", Text: dryRunPreview(rec, in.Arguments)}},
			IsError: false,
		}, nil
	}

	traceEnabled := in.Trace != nil && (in.Trace.IncludeRoute || in.Trace.IncludeTiming || in.Trace.IncludeSteps)

	result, err := g.runtime.Execute(ctx, runtime.ExecContext{
		CallableID:   rec.ID,
		Arguments:    in.Arguments,
		TimeoutMS:    timeoutMS,
		TraceEnabled: traceEnabled,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func dryRunPreview(rec *catalog.CallableRecord, arguments map[string]interface{}) string {
	argsJSON, _ := json.Marshal(arguments)
	return fmt.Sprintf("dry run: would call %s (%s) with arguments %s", rec.FQName, rec.Kind, argsJSON)
}

// ---- manage -------------------------------------------------------------

// ManageInput is manage's input.
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

// ManageOutput is manage's output: its shape depends on the operation, so
// callers type-assert Result as needed.
type ManageOutput struct {
	Operation string      `json:"operation"`
	SkillID   string      `json:"skill_id,omitempty"`
	Result    interface{} `json:"result,omitempty"`
}

// Manage dispatches one manage() call to the skill store, per distilled
// spec §4.8.
func (g *Gateway) Manage(in ManageInput) (*ManageOutput, error) {
	switch in.Operation {
	case "create":
		req := skillstore.CreateRequest{
			Name:        in.Name,
			Version:     in.Version,
			Description: in.Description,
			SkillMD:     in.SkillMD,
			InputSchema: in.InputSchema,
		}
		if err := g.skills.CreateSkill(req); err != nil {
			return nil, err
		}
		return &ManageOutput{Operation: in.Operation, SkillID: in.Name}, nil

	case "get":
		if in.Filename != "" {
			data, err := g.skills.LoadSkillFile(in.SkillID, in.Filename)
			if err != nil {
				return nil, err
			}
			return &ManageOutput{Operation: in.Operation, SkillID: in.SkillID, Result: string(data)}, nil
		}
		content, err := g.skills.LoadSkillContent(in.SkillID)
		if err != nil {
			return nil, err
		}
		return &ManageOutput{Operation: in.Operation, SkillID: in.SkillID, Result: content}, nil

	case "update":
		req := skillstore.CreateRequest{
			Name:        in.Name,
			Version:     in.Version,
			Description: in.Description,
			SkillMD:     in.SkillMD,
			InputSchema: in.InputSchema,
		}
		if err := g.skills.UpdateSkill(in.SkillID, req); err != nil {
			return nil, err
		}
		return &ManageOutput{Operation: in.Operation, SkillID: in.SkillID}, nil

	case "delete":
		if err := g.skills.DeleteSkill(in.SkillID); err != nil {
			return nil, err
		}
		return &ManageOutput{Operation: in.Operation, SkillID: in.SkillID}, nil

	default:
		return nil, gatewayerr.ValidationFailed(fmt.Sprintf("manage: unknown operation %q", in.Operation))
	}
}

// ---- tools/call dispatch --------------------------------------------------

// Dispatch routes one tools/call invocation to the matching facade method
// by name, decoding arguments into its typed Input struct and re-encoding
// its output into the MCP content-array shape.
func (g *Gateway) Dispatch(ctx context.Context, name string, arguments map[string]interface{}) (*catalog.ToolResult, error) {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal arguments: %w", err)
	}

	switch name {
	case "search":
		var in SearchInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("gateway: invalid search arguments: %w", err)
		}
		out, err := g.Search(in)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(out)

	case "schema":
		var in SchemaInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("gateway: invalid schema arguments: %w", err)
		}
		out, err := g.Schema(in)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(out)

	case "exec":
		var in ExecInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("gateway: invalid exec arguments: %w", err)
		}
		// Unlike search/schema/manage, exec errors propagate as JSON-RPC
		// errors rather than being folded into a ToolResult{IsError: true}:
		// a policy denial carries RequiredConsent, which dispatchToolCall
		// surfaces in the error's Data field (§7), and which an
		// IsError-only result would lose.
		return g.Exec(ctx, in)

	case "manage":
		var in ManageInput
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, fmt.Errorf("gateway: invalid manage arguments: %w", err)
		}
		out, err := g.Manage(in)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(out)

	default:
		return nil, gatewayerr.NotFound(name)
	}
}

func jsonResult(v interface{}) (*catalog.ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("gateway: marshal result: %w", err)
	}
	return &catalog.ToolResult{
		Content:           []catalog.ContentBlock{{Type: "text", Text: string(data)}},
		StructuredContent: v,
	}, nil
}

func errorResult(err error) *catalog.ToolResult {
	return &catalog.ToolResult{
		Content: []catalog.ContentBlock{{Type: "text", Text: err.Error()}},
		IsError: true,
	}
}

// facadeToolDefs describes the four meta-tools for tools/list, per
// distilled spec §4.8's input contracts.
func facadeToolDefs() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":        "search",
			"description": "Search the gateway's catalog of tools and skills.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"q":      map[string]interface{}{"type": "string", "description": "search text"},
					"kind":   map[string]interface{}{"type": "string", "enum": []string{"any", "tools", "skills"}},
					"mode":   map[string]interface{}{"type": "string", "enum": []string{"literal"}},
					"limit":  map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 50},
					"filters": map[string]interface{}{"type": "object"},
					"cursor": map[string]interface{}{"type": "string"},
				},
				"required": []string{"q"},
			},
		},
		{
			"name":        "schema",
			"description": "Resolve a callable id's input/output JSON Schema and a human-readable signature.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":                    map[string]interface{}{"type": "string"},
					"format":                map[string]interface{}{"type": "string", "enum": []string{"json_schema", "signature", "both"}},
					"include_output_schema": map[string]interface{}{"type": "boolean"},
					"max_bytes":             map[string]interface{}{"type": "integer"},
					"json_pointer":          map[string]interface{}{"type": "string"},
				},
				"required": []string{"id"},
			},
		},
		{
			"name":        "exec",
			"description": "Execute a tool or skill resolved by callable id.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":         map[string]interface{}{"type": "string"},
					"arguments":  map[string]interface{}{"type": "object"},
					"dry_run":    map[string]interface{}{"type": "boolean"},
					"timeout_ms": map[string]interface{}{"type": "integer"},
					"consent":    map[string]interface{}{"type": "object"},
					"trace":      map[string]interface{}{"type": "object"},
				},
				"required": []string{"id", "arguments"},
			},
		},
		{
			"name":        "manage",
			"description": "Create, inspect, update, or delete skills in the skill store.",
			"inputSchema": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"operation":    map[string]interface{}{"type": "string", "enum": []string{"create", "get", "update", "delete"}},
					"skill_id":     map[string]interface{}{"type": "string"},
					"name":         map[string]interface{}{"type": "string"},
					"version":      map[string]interface{}{"type": "string"},
					"description":  map[string]interface{}{"type": "string"},
					"skill_md":     map[string]interface{}{"type": "string"},
					"uses_tools":   map[string]interface{}{"type": "array"},
					"filename":     map[string]interface{}{"type": "string"},
				},
				"required": []string{"operation"},
			},
		},
	}
}

func toStringSlice(in []interface{}) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
