package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
)

func rec(alias, fq string, tier catalog.RiskTier, tags ...string) *catalog.CallableRecord {
	return &catalog.CallableRecord{
		FQName:      fq,
		ServerAlias: alias,
		Tags:        tags,
		RiskTier:    tier,
	}
}

func TestDenyTagsTakePriorityOverAllowlist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DenyTags = []string{"dangerous"}
	e := New(cfg)

	r := rec("files", "files.delete_all", catalog.RiskReadOnly, "dangerous")
	result := e.Authorize(r, nil, ConsentNone)

	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "denied tag")
}

func TestDenyPatternBeatsAllowPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowPatterns = []string{"*"}
	cfg.DenyPatterns = []string{"files.danger_*"}
	e := New(cfg)

	r := rec("files", "files.danger_wipe", catalog.RiskReadOnly)
	result := e.Authorize(r, nil, ConsentNone)

	assert.False(t, result.Allowed)
}

func TestNotInAllowlistDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowPatterns = []string{"files.*"}
	e := New(cfg)

	r := rec("net", "net.http_get", catalog.RiskReadOnly)
	result := e.Authorize(r, nil, ConsentNone)

	assert.False(t, result.Allowed)
}

func TestUntrustedServerDenied(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedServers = []string{"files"}
	e := New(cfg)

	r := rec("net", "net.http_get", catalog.RiskReadOnly)
	result := e.Authorize(r, nil, ConsentNone)

	assert.False(t, result.Allowed)
}

func TestRiskTierRequiresConsent(t *testing.T) {
	e := New(DefaultConfig())

	r := rec("files", "files.delete_file", catalog.RiskDestructive)

	denied := e.Authorize(r, nil, ConsentNone)
	require.False(t, denied.Allowed)
	require.NotNil(t, denied.RequiredConsent)
	assert.Equal(t, ConsentUserConfirmed, *denied.RequiredConsent)

	allowed := e.Authorize(r, nil, ConsentUserConfirmed)
	assert.True(t, allowed.Allowed)
}

func TestAdminTierRequiresAdminConsent(t *testing.T) {
	e := New(DefaultConfig())
	r := rec("files", "files.format_disk", catalog.RiskAdmin)

	partial := e.Authorize(r, nil, ConsentUserConfirmed)
	assert.False(t, partial.Allowed, "user_confirmed must not satisfy an admin requirement")

	full := e.Authorize(r, nil, ConsentAdminConfirmed)
	assert.True(t, full.Allowed)
}

func TestReadOnlyNeedsNoConsent(t *testing.T) {
	e := New(DefaultConfig())
	r := rec("files", "files.read_file", catalog.RiskReadOnly)

	result := e.Authorize(r, nil, ConsentNone)
	assert.True(t, result.Allowed)
}

func TestCheckTimeoutRejectsOverMax(t *testing.T) {
	e := New(DefaultConfig())

	timeout, err := e.CheckTimeout(5000)
	require.NoError(t, err)
	assert.EqualValues(t, 5000, timeout)

	_, err = e.CheckTimeout(999999999)
	assert.Error(t, err)
}

func TestCheckTimeoutDefaultsToMax(t *testing.T) {
	e := New(DefaultConfig())
	timeout, err := e.CheckTimeout(0)
	require.NoError(t, err)
	assert.EqualValues(t, 120000, timeout)
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "anything", true},
		{"files.*", "files.read_file", true},
		{"files.*", "net.http_get", false},
		{"files.?ead", "files.read", true},
		{"files.?ead", "files.reaad", false},
		{"skill.deploy_*", "skill.deploy_prod", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, globMatch(c.pattern, c.s), "pattern=%q s=%q", c.pattern, c.s)
	}
}
