// Package policy implements the gateway's stateless authorization gate:
// deny tags, deny/allow patterns, server trust, and risk-tier consent
// gating. Grounded verbatim on original_source/src/core/policy.rs.
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/gatekit/gatekit/internal/catalog"
)

// ConsentLevel orders how strongly a caller has signed off on an
// execution. Ordering matters: Authorize compares levels, not names.
type ConsentLevel int

const (
	ConsentNone ConsentLevel = iota
	ConsentUserConfirmed
	ConsentAdminConfirmed
)

// ParseConsentLevel maps a string to a ConsentLevel, defaulting to
// ConsentNone for anything unrecognized (infallible, per the original).
func ParseConsentLevel(s string) ConsentLevel {
	switch s {
	case "user_confirmed":
		return ConsentUserConfirmed
	case "admin_confirmed":
		return ConsentAdminConfirmed
	default:
		return ConsentNone
	}
}

func (c ConsentLevel) String() string {
	switch c {
	case ConsentUserConfirmed:
		return "user_confirmed"
	case ConsentAdminConfirmed:
		return "admin_confirmed"
	default:
		return "none"
	}
}

// Config is the user-facing policy configuration, loaded from the
// layered YAML/TOML config tree.
type Config struct {
	DefaultRisk       string   `yaml:"default_risk" toml:"default_risk"`
	RequireConsentFor []string `yaml:"require_consent_for" toml:"require_consent_for"`
	TrustedServers    []string `yaml:"trusted_servers" toml:"trusted_servers"`
	DenyTags          []string `yaml:"deny_tags" toml:"deny_tags"`
	MaxCallsPerSkill  int      `yaml:"max_calls_per_skill" toml:"max_calls_per_skill"`
	MaxExecMS         int64    `yaml:"max_exec_ms" toml:"max_exec_ms"`
	AllowPatterns     []string `yaml:"allow_patterns" toml:"allow_patterns"`
	DenyPatterns      []string `yaml:"deny_patterns" toml:"deny_patterns"`
}

// DefaultConfig returns the same defaults as the original's
// PolicyConfig::default(): unknown default risk, consent required for
// writes/destructive/admin, 30 calls/skill, 120s max exec, allow
// everything by default.
func DefaultConfig() Config {
	return Config{
		DefaultRisk:       "unknown",
		RequireConsentFor: []string{"writes", "destructive", "admin"},
		TrustedServers:    nil,
		DenyTags:          nil,
		MaxCallsPerSkill:  30,
		MaxExecMS:         120000,
		AllowPatterns:     []string{"*"},
		DenyPatterns:      nil,
	}
}

// PermissiveConfig returns a wide-open config suitable for local
// development and tests, mirroring PolicyEngine::new_permissive.
func PermissiveConfig() Config {
	return Config{
		DefaultRisk:       "read_only",
		RequireConsentFor: nil,
		TrustedServers:    []string{"*"},
		DenyTags:          nil,
		MaxCallsPerSkill:  100,
		MaxExecMS:         300000,
		AllowPatterns:     []string{"*"},
		DenyPatterns:      nil,
	}
}

// AuthorizationResult is the outcome of one Authorize call.
type AuthorizationResult struct {
	Allowed          bool
	Reason           string
	RequiredConsent  *ConsentLevel
}

func allow() AuthorizationResult {
	return AuthorizationResult{Allowed: true, Reason: "authorized"}
}

func deny(reason string) AuthorizationResult {
	return AuthorizationResult{Allowed: false, Reason: reason}
}

func denyWithConsent(reason string, required ConsentLevel) AuthorizationResult {
	r := required
	return AuthorizationResult{Allowed: false, Reason: reason, RequiredConsent: &r}
}

// LimitExceededError is returned by CheckTimeout when a caller requests
// more time than the policy allows.
type LimitExceededError struct {
	Requested int64
	Max       int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("requested timeout %dms exceeds maximum %dms", e.Requested, e.Max)
}

// Engine is a stateless authorization gate compiled from Config. It holds
// no execution-count or rate-limit state; MaxCallsPerSkill reports the
// configured max_calls_per_skill ceiling, and no gatekit component counts
// calls against it.
type Engine struct {
	config               Config
	consentRequiredTiers map[catalog.RiskTier]bool
	trustedServers       map[string]bool
	denyTags             map[string]bool
	allowPatterns        []string
	denyPatterns         []string
}

// New compiles a Config into an Engine.
func New(config Config) *Engine {
	consentTiers := make(map[catalog.RiskTier]bool, len(config.RequireConsentFor))
	for _, s := range config.RequireConsentFor {
		consentTiers[catalog.ParseRiskTier(s)] = true
	}

	trusted := make(map[string]bool, len(config.TrustedServers))
	for _, s := range config.TrustedServers {
		trusted[s] = true
	}

	denyTags := make(map[string]bool, len(config.DenyTags))
	for _, t := range config.DenyTags {
		denyTags[t] = true
	}

	return &Engine{
		config:               config,
		consentRequiredTiers: consentTiers,
		trustedServers:       trusted,
		denyTags:             denyTags,
		allowPatterns:        append([]string(nil), config.AllowPatterns...),
		denyPatterns:         append([]string(nil), config.DenyPatterns...),
	}
}

// NewPermissive builds an Engine from PermissiveConfig, for tests and
// local development.
func NewPermissive() *Engine {
	return New(PermissiveConfig())
}

// Authorize runs the six ordered checks against a callable, grounded
// verbatim on original_source/src/core/policy.rs::authorize:
//  1. deny tags
//  2. deny patterns (fq_name)
//  3. allow patterns (fq_name must match at least one, if any configured)
//  4. server trust (tools only)
//  5. risk tier → required consent level
//  6. otherwise allow
//
// arguments is accepted (and ignored, as in the original) so that future
// argument-shape policies have a stable call site to extend from.
func (e *Engine) Authorize(rec *catalog.CallableRecord, arguments json.RawMessage, consent ConsentLevel) AuthorizationResult {
	for _, tag := range rec.Tags {
		if e.denyTags[tag] {
			return deny(fmt.Sprintf("callable has denied tag: %s", tag))
		}
	}

	for _, pattern := range e.denyPatterns {
		if globMatch(pattern, rec.FQName) {
			return deny(fmt.Sprintf("callable matches deny pattern: %s", pattern))
		}
	}

	if len(e.allowPatterns) > 0 {
		matched := false
		for _, pattern := range e.allowPatterns {
			if globMatch(pattern, rec.FQName) {
				matched = true
				break
			}
		}
		if !matched {
			return deny("callable not in allowlist")
		}
	}

	if rec.ServerAlias != "" {
		if len(e.trustedServers) > 0 && !e.trustedServers[rec.ServerAlias] && !e.trustedServers["*"] {
			return deny(fmt.Sprintf("server not in trusted list: %s", rec.ServerAlias))
		}
	}

	if e.consentRequiredTiers[rec.RiskTier] {
		required := requiredConsentFor(rec.RiskTier)
		if consent < required {
			return denyWithConsent(
				fmt.Sprintf("risk tier %s requires consent level %s", rec.RiskTier, required),
				required,
			)
		}
	}

	return allow()
}

func requiredConsentFor(tier catalog.RiskTier) ConsentLevel {
	switch tier {
	case catalog.RiskAdmin:
		return ConsentAdminConfirmed
	case catalog.RiskDestructive, catalog.RiskWrites:
		return ConsentUserConfirmed
	default:
		return ConsentNone
	}
}

// CheckTimeout validates a caller-requested timeout against max_exec_ms,
// returning the effective timeout to use (the request, or the configured
// maximum if none was given).
func (e *Engine) CheckTimeout(requestedMS int64) (int64, error) {
	timeout := requestedMS
	if timeout <= 0 {
		timeout = e.config.MaxExecMS
	}
	if timeout > e.config.MaxExecMS {
		return 0, &LimitExceededError{Requested: timeout, Max: e.config.MaxExecMS}
	}
	return timeout, nil
}

// MaxCallsPerSkill returns the configured ceiling on nested tool calls a
// single skill execution may make.
func (e *Engine) MaxCallsPerSkill() int {
	return e.config.MaxCallsPerSkill
}

// IsServerTrusted reports whether alias is in the trusted server list (or
// the list contains the wildcard).
func (e *Engine) IsServerTrusted(alias string) bool {
	return e.trustedServers[alias] || e.trustedServers["*"]
}
