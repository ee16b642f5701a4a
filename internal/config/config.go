package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gatekit/gatekit/internal/credentials"
	"github.com/gatekit/gatekit/internal/policy"
	"github.com/gatekit/gatekit/internal/sandbox"
	"github.com/gatekit/gatekit/internal/skillstore"
	"github.com/gatekit/gatekit/internal/upstream"
)

// UpstreamConfig is one entry of the top-level upstreams[] list, per
// spec §6. Transport kinds agent_skills_repo/agent_skills_fs describe a
// skill source rather than an upstream.Manager session, so they are
// folded into AgentSkillsRepos at load time rather than handed to the
// upstream manager.
type UpstreamConfig struct {
	Alias     string            `yaml:"alias" toml:"alias"`
	Transport string            `yaml:"transport" toml:"transport"`
	Command   []string          `yaml:"command,omitempty" toml:"command,omitempty"`
	URL       string            `yaml:"url,omitempty" toml:"url,omitempty"`
	Env       map[string]string `yaml:"env,omitempty" toml:"env,omitempty"`
	Auth      struct {
		Type  string `yaml:"type,omitempty" toml:"type,omitempty"`
		Env   string `yaml:"env,omitempty" toml:"env,omitempty"`
		Token string `yaml:"token,omitempty" toml:"token,omitempty"`
	} `yaml:"auth,omitempty" toml:"auth,omitempty"`
	Repo          string   `yaml:"repo,omitempty" toml:"repo,omitempty"`
	GitRef        string   `yaml:"git_ref,omitempty" toml:"git_ref,omitempty"`
	Skills        []string `yaml:"skills,omitempty" toml:"skills,omitempty"`
	Roots         []string `yaml:"roots,omitempty" toml:"roots,omitempty"`
	Tags          []string `yaml:"tags,omitempty" toml:"tags,omitempty"`
	SandboxConfig *sandbox.Config `yaml:"sandbox_config,omitempty" toml:"sandbox_config,omitempty"`
}

// PathsConfig is the optional paths{} override block; any field left
// empty keeps the environment-resolved Paths value.
type PathsConfig struct {
	DataDir      string `yaml:"data_dir,omitempty" toml:"data_dir,omitempty"`
	ConfigDir    string `yaml:"config_dir,omitempty" toml:"config_dir,omitempty"`
	CacheDir     string `yaml:"cache_dir,omitempty" toml:"cache_dir,omitempty"`
	DatabasePath string `yaml:"database_path,omitempty" toml:"database_path,omitempty"`
	SkillsRoot   string `yaml:"skills_root,omitempty" toml:"skills_root,omitempty"`
	LogsDir      string `yaml:"logs_dir,omitempty" toml:"logs_dir,omitempty"`
}

// UseGlobalConfig toggles overlaying a project-local gatekit.toml on
// top of the global YAML config, per §6's use_global.enabled.
type UseGlobalConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// AgentSkillsRepoConfig is one entry of agent_skills_repos[].
type AgentSkillsRepoConfig struct {
	Repo   string   `yaml:"repo" toml:"repo"`
	GitRef string   `yaml:"git_ref,omitempty" toml:"git_ref,omitempty"`
	Skills []string `yaml:"skills,omitempty" toml:"skills,omitempty"`
	Alias  string   `yaml:"alias,omitempty" toml:"alias,omitempty"`
}

// Config is the fully bound, merged configuration, covering every field
// of spec §6 "Configuration recognized".
type Config struct {
	Upstreams         []UpstreamConfig        `yaml:"upstreams,omitempty" toml:"upstreams,omitempty"`
	Paths             PathsConfig             `yaml:"paths,omitempty" toml:"paths,omitempty"`
	Policy            policy.Config           `yaml:"policy,omitempty" toml:"policy,omitempty"`
	Sandbox           sandbox.Config          `yaml:"sandbox,omitempty" toml:"sandbox,omitempty"`
	AgentSkillsRepos  []AgentSkillsRepoConfig `yaml:"agent_skills_repos,omitempty" toml:"agent_skills_repos,omitempty"`
	UseGlobal         UseGlobalConfig         `yaml:"use_global,omitempty" toml:"use_global,omitempty"`
}

// Default returns the same policy/sandbox defaults the rest of the
// gateway falls back to when no config file is present.
func Default() Config {
	return Config{
		Policy:  policy.DefaultConfig(),
		Sandbox: sandbox.Default(),
	}
}

// Load reads $configDir/config.yaml (the global layer) and, when
// use_global.enabled is set there, overlays ./gatekit.toml (the
// project-local layer) on top — matching the teacher's
// profile.Store-style "project overrides global" merge, generalized from
// a single profile file to a two-format config stack.
func Load(configDir string) (Config, error) {
	cfg := Default()

	globalPath := filepath.Join(configDir, "config.yaml")
	if data, err := os.ReadFile(globalPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", globalPath, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", globalPath, err)
	}

	if cfg.UseGlobal.Enabled {
		if data, err := os.ReadFile("gatekit.toml"); err == nil {
			var overlay Config
			if err := toml.Unmarshal(data, &overlay); err != nil {
				return Config{}, fmt.Errorf("config: parse gatekit.toml: %w", err)
			}
			cfg = mergeOverlay(cfg, overlay)
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read gatekit.toml: %w", err)
		}
	}

	return cfg, nil
}

// mergeOverlay lets a project-local gatekit.toml extend (not replace)
// the global upstream/repo lists, while a policy, sandbox or paths
// section it sets replaces the global one outright. A section counts as
// set only through specific fields: policy through allow_patterns,
// deny_patterns or default_risk; sandbox through backend; paths through
// skills_root or data_dir. An overlay section that sets none of those
// fields is ignored.
func mergeOverlay(base, overlay Config) Config {
	merged := base
	merged.Upstreams = append(merged.Upstreams, overlay.Upstreams...)
	merged.AgentSkillsRepos = append(merged.AgentSkillsRepos, overlay.AgentSkillsRepos...)
	if len(overlay.Policy.AllowPatterns) > 0 || len(overlay.Policy.DenyPatterns) > 0 || overlay.Policy.DefaultRisk != "" {
		merged.Policy = overlay.Policy
	}
	if overlay.Sandbox.Backend != "" {
		merged.Sandbox = overlay.Sandbox
	}
	if overlay.Paths.SkillsRoot != "" || overlay.Paths.DataDir != "" {
		merged.Paths = overlay.Paths
	}
	return merged
}

// ApplyPathOverrides lets config.yaml's paths{} block override the
// environment-resolved Paths, per §6 ("paths" config field taking effect
// alongside the SKILLS_* environment variables).
func ApplyPathOverrides(p Paths, overrides PathsConfig) Paths {
	if overrides.DataDir != "" {
		p.DataDir = overrides.DataDir
	}
	if overrides.ConfigDir != "" {
		p.ConfigDir = overrides.ConfigDir
	}
	if overrides.CacheDir != "" {
		p.CacheDir = overrides.CacheDir
	}
	if overrides.DatabasePath != "" {
		p.DatabasePath = overrides.DatabasePath
	}
	if overrides.SkillsRoot != "" {
		p.SkillsRoot = overrides.SkillsRoot
	}
	if overrides.LogsDir != "" {
		p.LogsDir = overrides.LogsDir
	}
	return p
}

// ToUpstreamConfigs filters Upstreams down to the sessions the upstream
// manager should actually dial (stdio/http), excluding
// agent_skills_repo/agent_skills_fs entries that ToAgentSkillsRepos
// handles instead. creds may be nil, in which case token resolution
// falls back to literal config/env only, skipping the keychain.
func ToUpstreamConfigs(entries []UpstreamConfig, creds *credentials.Manager) []upstream.Config {
	var out []upstream.Config
	for _, e := range entries {
		switch e.Transport {
		case "agent_skills_repo", "agent_skills_fs":
			continue
		}
		token, _ := resolveToken(creds, e.Alias, e.Auth.Token, e.Auth.Env)
		out = append(out, upstream.Config{
			Alias:     e.Alias,
			Transport: upstream.Transport(e.Transport),
			Command:   e.Command,
			Env:       e.Env,
			BaseURL:   e.URL,
			Auth: upstream.AuthConfig{
				Token: token,
				Env:   e.Auth.Env,
			},
			Tags: e.Tags,
		})
	}
	return out
}

// ToAgentSkillsRepos merges the inline agent_skills_repo upstream
// entries with the dedicated agent_skills_repos[] list into the single
// RepoConfig slice skillstore.Store.Sync expects.
func ToAgentSkillsRepos(upstreams []UpstreamConfig, repos []AgentSkillsRepoConfig) []skillstore.RepoConfig {
	var out []skillstore.RepoConfig
	for _, e := range upstreams {
		if e.Transport != "agent_skills_repo" && e.Transport != "agent_skills_fs" {
			continue
		}
		out = append(out, skillstore.RepoConfig{Repo: e.Repo, Ref: e.GitRef, Skills: e.Skills, Alias: e.Alias})
	}
	for _, r := range repos {
		out = append(out, skillstore.RepoConfig{Repo: r.Repo, Ref: r.GitRef, Skills: r.Skills, Alias: r.Alias})
	}
	return out
}

// resolveToken prefers a literal token, then envVar, then (when creds is
// non-nil) any token stashed in the OS keychain by a prior OAuth login,
// matching the distilled spec's "auth.token or environment variable
// auth.env" upstream auth contract plus the oauth2 extension.
func resolveToken(creds *credentials.Manager, alias, token, envVar string) (string, error) {
	if creds == nil {
		if token != "" {
			return token, nil
		}
		if envVar != "" {
			return os.Getenv(envVar), nil
		}
		return "", nil
	}
	resolved, err := creds.ResolveToken(alias, token, envVar, os.Getenv)
	if err != nil {
		return "", nil
	}
	return resolved, nil
}
