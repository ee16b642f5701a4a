// Package skillstore loads filesystem-backed skill packages into
// catalog.CallableRecord values, in either of the two accepted on-disk
// formats (structured skill.json manifest, or SKILL.md YAML frontmatter),
// and implements the create/update/delete/sync lifecycle operations.
package skillstore

import "encoding/json"

// EntrypointKind names how a skill's behavior is driven.
type EntrypointKind string

const (
	EntrypointWorkflow EntrypointKind = "workflow"
	EntrypointScript   EntrypointKind = "script"
	EntrypointPrompted EntrypointKind = "prompted"
)

// ToolPolicy constrains which registry callables a skill may declare use
// of, per its own manifest.
type ToolPolicy struct {
	Allow    []string `json:"allow,omitempty"`
	Deny     []string `json:"deny,omitempty"`
	Required []string `json:"required,omitempty"`
}

// Manifest is the skill.json structured format.
type Manifest struct {
	ID          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Version     string         `json:"version"`
	Description string         `json:"description,omitempty"`
	Inputs      map[string]any `json:"inputs"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Entrypoint  EntrypointKind `json:"entrypoint"`
	ToolPolicy  ToolPolicy     `json:"tool_policy,omitempty"`
	Hints       map[string]any `json:"hints,omitempty"`
	RiskTier    string         `json:"risk_tier,omitempty"`
}

// ParseManifest decodes a skill.json payload.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Marshal serializes a Manifest back to pretty JSON for create_skill/
// update_skill.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
