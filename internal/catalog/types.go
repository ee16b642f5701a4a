package catalog

import "time"

// RiskTier orders how much latitude a callable has to affect the world.
// The ordering matters: policy compares tiers, it does not just match
// them by name.
type RiskTier int

const (
	RiskReadOnly RiskTier = iota
	RiskWrites
	RiskDestructive
	RiskAdmin
	RiskUnknown
)

func (r RiskTier) String() string {
	switch r {
	case RiskReadOnly:
		return "read_only"
	case RiskWrites:
		return "writes"
	case RiskDestructive:
		return "destructive"
	case RiskAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRiskTier maps a string (as found in upstream tool annotations or
// skill frontmatter) to a RiskTier. Unrecognized values map to
// RiskUnknown, matching the default-for-untrusted-source rule.
func ParseRiskTier(s string) RiskTier {
	switch s {
	case "read_only":
		return RiskReadOnly
	case "writes":
		return RiskWrites
	case "destructive":
		return RiskDestructive
	case "admin":
		return RiskAdmin
	default:
		return RiskUnknown
	}
}

// RequiresConsent reports whether this tier is gated by consent under the
// default policy configuration (writes, destructive, admin).
func (r RiskTier) RequiresConsent() bool {
	return r == RiskWrites || r == RiskDestructive || r == RiskAdmin
}

// Health is the connectivity state of an upstream server as seen by the
// catalog (a coarser view than upstream.State).
type Health string

const (
	HealthConnected Health = "connected"
	HealthDegraded  Health = "degraded"
	HealthDown      Health = "down"
)

// CostHints carries advisory cost/latency metadata surfaced by search
// results; nothing in the gateway enforces these numbers, they exist so a
// caller can make an informed pick between otherwise-equivalent callables.
type CostHints struct {
	EstimatedLatencyMS int     `json:"estimated_latency_ms,omitempty"`
	CostPerCall        float64 `json:"cost_per_call,omitempty"`
}

// ContentBlock is one element of a ToolResult's content array.
type ContentBlock struct {
	Type string `json:"type"` // "text" | "image" | "resource"

	// Text
	Text string `json:"text,omitempty"`

	// Image
	Base64 string `json:"base64,omitempty"`
	MIME   string `json:"mime,omitempty"`

	// Resource
	URI  string `json:"uri,omitempty"`
	Blob string `json:"blob,omitempty"`
}

// ToolResult is the normalized outcome of a tool or skill invocation,
// independent of whichever upstream wire format produced it.
type ToolResult struct {
	Content           []ContentBlock  `json:"content"`
	StructuredContent interface{}     `json:"structured_content,omitempty"`
	IsError           bool            `json:"is_error"`
}

// BundledTool is an ad-hoc callable a skill ships alongside its prose
// instructions — e.g. a small script the skill's README tells the model
// to invoke directly rather than through an upstream server.
type BundledTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Command     []string        `json:"command"`
	Schema      map[string]any  `json:"schema,omitempty"`
}

// CallableRecord is the immutable descriptor of one callable — a tool
// exposed by a connected upstream server, or a skill loaded from the
// skill store. Registry is the only component permitted to mutate the
// map holding these; every other component resolves callables through it.
type CallableRecord struct {
	ID          CallableId `json:"id"`
	Kind        Kind       `json:"kind"`
	FQName      string     `json:"fq_name"`
	Name        string     `json:"name"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`

	InputSchema  map[string]any `json:"input_schema"`
	OutputSchema map[string]any `json:"output_schema,omitempty"`
	SchemaDigest SchemaDigest   `json:"-"`

	// Tool-only fields.
	ServerAlias      string `json:"server_alias,omitempty"`
	UpstreamToolName string `json:"upstream_tool_name,omitempty"`

	// Skill-only fields.
	SkillVersion    string        `json:"skill_version,omitempty"`
	Uses            []string      `json:"uses,omitempty"`
	SkillDirectory  string        `json:"skill_directory,omitempty"`
	BundledTools    []BundledTool `json:"bundled_tools,omitempty"`
	AdditionalFiles []string      `json:"additional_files,omitempty"`

	CostHints CostHints `json:"cost_hints,omitempty"`
	RiskTier  RiskTier  `json:"risk_tier"`
	LastSeen  time.Time `json:"last_seen"`
}

// ServerInfo is the catalog's view of one configured upstream server.
type ServerInfo struct {
	Alias       string    `json:"alias"`
	Health      Health    `json:"health"`
	ToolCount   int       `json:"tool_count"`
	LastRefresh time.Time `json:"last_refresh"`
	Tags        []string  `json:"tags,omitempty"`
}

// ExecutionRecord is one completed exec() call, in the shape
// config.Store.AppendExecution stores (the runtime does not append these
// itself). Not part of the
// distilled spec's explicit data model, but required by its own
// description of a persisted "execution_history" table (SPEC_FULL.md
// §3.1).
type ExecutionRecord struct {
	ID          string     `json:"id"`
	CallableID  CallableId `json:"callable_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	DurationMS  int64      `json:"duration_ms"`
	Success     bool       `json:"success"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	TraceJSON   string     `json:"trace_json,omitempty"`
}
