package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/credentials"
)

func TestLoadReturnsDefaultsWhenNoConfigFilePresent(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "unknown", cfg.Policy.DefaultRisk)
	assert.Equal(t, int64(30000), cfg.Sandbox.TimeoutMS)
}

func TestLoadParsesGlobalYAML(t *testing.T) {
	dir := t.TempDir()
	yamlConfig := `
upstreams:
  - alias: files
    transport: stdio
    command: ["./files-server"]
    tags: ["fs"]
policy:
  default_risk: writes
  deny_tags: ["blocked"]
  max_calls_per_skill: 5
  max_exec_ms: 60000
sandbox:
  backend: bubblewrap
  timeout_ms: 15000
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlConfig), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, cfg.Upstreams, 1)
	assert.Equal(t, "files", cfg.Upstreams[0].Alias)
	assert.Equal(t, []string{"blocked"}, cfg.Policy.DenyTags)
	assert.Equal(t, 5, cfg.Policy.MaxCallsPerSkill)
	assert.Equal(t, "bubblewrap", string(cfg.Sandbox.Backend))
}

func TestLoadOverlaysProjectTOMLWhenUseGlobalEnabled(t *testing.T) {
	dir := t.TempDir()
	yamlConfig := `
use_global:
  enabled: true
upstreams:
  - alias: base
    transport: stdio
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yamlConfig), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Chdir(t.TempDir())
	defer t.Chdir(wd)

	tomlOverlay := `
[[upstreams]]
alias = "project-local"
transport = "stdio"
`
	require.NoError(t, os.WriteFile("gatekit.toml", []byte(tomlOverlay), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Len(t, cfg.Upstreams, 2)
	assert.Equal(t, "base", cfg.Upstreams[0].Alias)
	assert.Equal(t, "project-local", cfg.Upstreams[1].Alias)
}

func TestToUpstreamConfigsExcludesAgentSkillsEntries(t *testing.T) {
	entries := []UpstreamConfig{
		{Alias: "files", Transport: "stdio", Command: []string{"./x"}},
		{Alias: "repo", Transport: "agent_skills_repo", Repo: "https://example.test/skills.git"},
	}
	out := ToUpstreamConfigs(entries, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "files", out[0].Alias)
}

func TestToUpstreamConfigsHonorsCredentialsManagerLiteralToken(t *testing.T) {
	entries := []UpstreamConfig{
		{Alias: "files", Transport: "stdio", Command: []string{"./x"}},
	}
	entries[0].Auth.Token = "literal-token"

	out := ToUpstreamConfigs(entries, credentials.NewManager())
	require.Len(t, out, 1)
	assert.Equal(t, "literal-token", out[0].Auth.Token)
}

func TestToAgentSkillsReposMergesInlineAndDedicatedLists(t *testing.T) {
	upstreams := []UpstreamConfig{
		{Alias: "repo", Transport: "agent_skills_repo", Repo: "https://example.test/a.git", GitRef: "main"},
	}
	repos := []AgentSkillsRepoConfig{
		{Repo: "https://example.test/b.git", Alias: "b"},
	}
	out := ToAgentSkillsRepos(upstreams, repos)
	require.Len(t, out, 2)
	assert.Equal(t, "https://example.test/a.git", out[0].Repo)
	assert.Equal(t, "https://example.test/b.git", out[1].Repo)
}
