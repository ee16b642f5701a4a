// Package config resolves gatekit's on-disk layout and layered
// configuration file, grounded on the teacher's cmd/scooter appDir
// resolution and internal/domain/profile.Store.
package config

import (
	"os"
	"path/filepath"
)

// Paths is the immutable set of directories/files gatekit reads and
// writes from, resolved once at startup per §9's "global configuration
// is process-wide, read-only thereafter; reload equals restart".
type Paths struct {
	DataDir      string
	ConfigDir    string
	CacheDir     string
	DatabasePath string
	SkillsRoot   string
	LogsDir      string
	NoSandbox    bool
}

// ResolvePaths builds Paths from SKILLS_CONFIG_DIR (or os.UserConfigDir,
// mirroring the teacher's SCOOTER_CONFIG_DIR fallback) as the base
// directory, then lets each SKILLS_* environment variable override its
// matching path per spec §6.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("SKILLS_CONFIG_DIR")
	if base == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			configDir = "."
		}
		base = filepath.Join(configDir, "gatekit")
	}

	p := Paths{
		DataDir:      filepath.Join(base, "data"),
		ConfigDir:    base,
		CacheDir:     filepath.Join(base, "cache"),
		DatabasePath: filepath.Join(base, "data", "gatekit.db"),
		SkillsRoot:   filepath.Join(base, "skills"),
		LogsDir:      filepath.Join(base, "logs"),
		NoSandbox:    false,
	}

	if v := os.Getenv("SKILLS_DATA_DIR"); v != "" {
		p.DataDir = v
	}
	if v := os.Getenv("SKILLS_CONFIG_DIR"); v != "" {
		p.ConfigDir = v
	}
	if v := os.Getenv("SKILLS_CACHE_DIR"); v != "" {
		p.CacheDir = v
	}
	if v := os.Getenv("SKILLS_DATABASE_PATH"); v != "" {
		p.DatabasePath = v
	}
	if v := os.Getenv("SKILLS_ROOT"); v != "" {
		p.SkillsRoot = v
	}
	if v := os.Getenv("SKILLS_LOGS_DIR"); v != "" {
		p.LogsDir = v
	}
	if os.Getenv("SKILLS_NO_SANDBOX") == "1" {
		p.NoSandbox = true
	}

	for _, dir := range []string{p.DataDir, p.ConfigDir, p.CacheDir, p.SkillsRoot, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Paths{}, err
		}
	}
	return p, nil
}
