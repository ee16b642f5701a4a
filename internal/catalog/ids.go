// Package catalog implements the gateway's callable registry and search
// index: the authoritative record of every tool and skill the gateway can
// dispatch to, and the inverted-index search over it.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes the two callable families the gateway exposes.
type Kind string

const (
	KindTool  Kind = "tool"
	KindSkill Kind = "skill"
)

// CallableId is the opaque, stable identifier handed back by search and
// accepted by exec. Tools are namespaced by server alias and carry a
// schema digest so that a stale client can never invoke a tool whose input
// contract has since changed underneath it; skills are namespaced by
// version instead.
//
//	tool:srv:<alias>::<name>::sd:<digest8>
//	skill:<id>@<version>
type CallableId string

// NewToolId builds a CallableId for a server-backed tool.
func NewToolId(alias, name string, digest SchemaDigest) CallableId {
	return CallableId(fmt.Sprintf("tool:srv:%s::%s::sd:%s", alias, name, digest.Short()))
}

// NewSkillId builds a CallableId for a skill.
func NewSkillId(id, version string) CallableId {
	return CallableId(fmt.Sprintf("skill:%s@%s", id, version))
}

// Kind reports whether the id names a tool or a skill. Malformed ids
// report KindTool so that callers fail at lookup rather than at parsing.
func (c CallableId) Kind() Kind {
	if strings.HasPrefix(string(c), "skill:") {
		return KindSkill
	}
	return KindTool
}

// ParseToolId splits a tool CallableId into its alias, tool name, and
// schema digest prefix. ok is false if the id is not a well-formed tool id.
func ParseToolId(id CallableId) (alias, name, digestPrefix string, ok bool) {
	s := string(id)
	if !strings.HasPrefix(s, "tool:srv:") {
		return "", "", "", false
	}
	rest := strings.TrimPrefix(s, "tool:srv:")
	parts := strings.SplitN(rest, "::", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	alias = parts[0]
	name = parts[1]
	if !strings.HasPrefix(parts[2], "sd:") {
		return "", "", "", false
	}
	digestPrefix = strings.TrimPrefix(parts[2], "sd:")
	return alias, name, digestPrefix, true
}

// ParseSkillId splits a skill CallableId into its skill id and version.
func ParseSkillId(id CallableId) (skillID, version string, ok bool) {
	s := string(id)
	if !strings.HasPrefix(s, "skill:") {
		return "", "", false
	}
	rest := strings.TrimPrefix(s, "skill:")
	idx := strings.LastIndex(rest, "@")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// SchemaDigest is a 32-byte hash of a callable's canonicalized input
// schema. Two tools with byte-identical schemas digest identically
// regardless of upstream key ordering.
type SchemaDigest [32]byte

// Short returns the 8 hex characters embedded in a CallableId.
func (d SchemaDigest) Short() string {
	return hex.EncodeToString(d[:])[:8]
}

// String returns the full hex digest.
func (d SchemaDigest) String() string {
	return hex.EncodeToString(d[:])
}

// DigestSchema canonicalizes a JSON schema (object keys sorted, compact
// separators, array order preserved) and hashes the result with SHA-256.
//
// The original implementation this is grounded on uses BLAKE3; this port
// uses crypto/sha256 because no BLAKE3 binding appears anywhere in the
// example pack and the spec explicitly allows "BLAKE3 or equivalent
// cryptographic hash" here — pulling in a hash-only dependency for this
// one call site would not exercise any other component, so it is the one
// library-backed concern intentionally left on the standard library.
func DigestSchema(schema json.RawMessage) (SchemaDigest, error) {
	var v interface{}
	if err := json.Unmarshal(schema, &v); err != nil {
		return SchemaDigest{}, fmt.Errorf("catalog: invalid schema: %w", err)
	}
	canon := canonicalize(v)
	b, err := json.Marshal(canon)
	if err != nil {
		return SchemaDigest{}, fmt.Errorf("catalog: canonicalize schema: %w", err)
	}
	return sha256.Sum256(b), nil
}

// canonicalize recursively sorts map keys so that json.Marshal produces a
// deterministic byte sequence. json.Marshal already sorts map[string]any
// keys, but we recurse explicitly so the contract doesn't depend on that
// incidental stdlib behavior.
func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = canonicalize(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return t
	}
}
