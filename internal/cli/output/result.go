package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gatekit/gatekit/internal/catalog"
)

// CallResult wraps one exec() catalog.ToolResult for text/JSON/markdown
// rendering. Grounded on the teacher's output.CallResult, adapted from its
// ad-hoc *client.CallResult to the shared catalog.ToolResult type both the
// CLI and the daemon use.
type CallResult struct {
	Raw *catalog.ToolResult
}

// NewCallResult wraps a raw tool result.
func NewCallResult(raw *catalog.ToolResult) *CallResult {
	return &CallResult{Raw: raw}
}

// Text joins every text content block with joiner.
func (r *CallResult) Text(joiner string) string {
	var parts []string
	for _, c := range r.Raw.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, joiner)
}

// JSON renders the raw result as indented JSON.
func (r *CallResult) JSON() (string, error) {
	data, err := json.MarshalIndent(r.Raw, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Markdown renders text blocks as paragraphs, image blocks as embedded
// base64 images, and resource blocks as a resource reference heading.
func (r *CallResult) Markdown() string {
	var sb strings.Builder
	for _, c := range r.Raw.Content {
		switch c.Type {
		case "text":
			sb.WriteString(c.Text)
			sb.WriteString("\n\n")
		case "image":
			sb.WriteString(fmt.Sprintf("![Image](data:%s;base64,%s)\n\n", c.MIME, c.Base64))
		case "resource":
			sb.WriteString(fmt.Sprintf("### Resource: %s\n\n", c.URI))
		}
	}
	return strings.TrimSpace(sb.String())
}

// IsError reports whether the underlying tool call failed.
func (r *CallResult) IsError() bool {
	return r.Raw.IsError
}
