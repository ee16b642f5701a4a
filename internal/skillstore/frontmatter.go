package skillstore

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML block at the top of a frontmatter-format
// SKILL.md.
type Frontmatter struct {
	Name          string         `yaml:"name"`
	Description   string         `yaml:"description,omitempty"`
	License       string         `yaml:"license,omitempty"`
	Compatibility string         `yaml:"compatibility,omitempty"`
	Metadata      map[string]any `yaml:"metadata,omitempty"`
	AllowedTools  any            `yaml:"allowed-tools,omitempty"`
}

// AllowedToolsList normalizes the allowed-tools field, which may be
// declared as either a single string or a YAML sequence of strings.
func (f *Frontmatter) AllowedToolsList() []string {
	switch v := f.AllowedTools.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

var nameRe = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidateName enforces the distilled spec's frontmatter name rule:
// 1-64 chars, lowercase/digit/hyphen, no leading/trailing or consecutive
// hyphens.
func ValidateName(name string) error {
	if len(name) < 1 || len(name) > 64 {
		return fmt.Errorf("skillstore: name must be 1-64 characters, got %d", len(name))
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("skillstore: name %q must be lowercase alphanumeric with single hyphens, no leading/trailing/consecutive hyphens", name)
	}
	return nil
}

// normalizeLineEndings converts CRLF to LF before frontmatter parsing, per
// the distilled spec's explicit normalization step.
func normalizeLineEndings(content string) string {
	return strings.ReplaceAll(content, "\r\n", "\n")
}

// ParseFrontmatter splits a SKILL.md's leading "---\n...\n---\n" YAML
// block from its body. ok is false if content does not begin with a
// frontmatter block, in which case the manifest format should be tried
// instead.
func ParseFrontmatter(content string) (fm *Frontmatter, body string, ok bool, err error) {
	content = normalizeLineEndings(content)
	if !strings.HasPrefix(content, "---\n") {
		return nil, content, false, nil
	}

	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		// also accept a trailing "---" with no final newline
		if strings.HasSuffix(rest, "\n---") {
			end = len(rest) - len("\n---")
			yamlBlock := rest[:end]
			var parsed Frontmatter
			if err := yaml.Unmarshal([]byte(yamlBlock), &parsed); err != nil {
				return nil, "", true, fmt.Errorf("skillstore: invalid frontmatter: %w", err)
			}
			return &parsed, "", true, nil
		}
		return nil, content, false, nil
	}

	yamlBlock := rest[:end]
	bodyContent := rest[end+len("\n---\n"):]

	var parsed Frontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &parsed); err != nil {
		return nil, "", true, fmt.Errorf("skillstore: invalid frontmatter: %w", err)
	}

	if len(parsed.Description) > 1024 {
		return nil, "", true, fmt.Errorf("skillstore: description exceeds 1024 characters")
	}
	if len(parsed.Compatibility) > 500 {
		return nil, "", true, fmt.Errorf("skillstore: compatibility exceeds 500 characters")
	}

	return &parsed, bodyContent, true, nil
}
