package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSkillsEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SKILLS_DATA_DIR", "SKILLS_CONFIG_DIR", "SKILLS_CACHE_DIR",
		"SKILLS_DATABASE_PATH", "SKILLS_ROOT", "SKILLS_LOGS_DIR", "SKILLS_NO_SANDBOX",
	} {
		t.Setenv(k, "")
	}
}

func TestResolvePathsDefaultsUnderConfigDir(t *testing.T) {
	clearSkillsEnv(t)
	root := t.TempDir()
	t.Setenv("SKILLS_CONFIG_DIR", root)

	p, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, root, p.ConfigDir)
	assert.Equal(t, filepath.Join(root, "data"), p.DataDir)
	assert.Equal(t, filepath.Join(root, "skills"), p.SkillsRoot)
	assert.False(t, p.NoSandbox)

	for _, dir := range []string{p.DataDir, p.CacheDir, p.SkillsRoot, p.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolvePathsIndividualOverrides(t *testing.T) {
	clearSkillsEnv(t)
	root := t.TempDir()
	t.Setenv("SKILLS_CONFIG_DIR", root)

	skillsRoot := filepath.Join(t.TempDir(), "custom-skills")
	t.Setenv("SKILLS_ROOT", skillsRoot)
	t.Setenv("SKILLS_NO_SANDBOX", "1")

	p, err := ResolvePaths()
	require.NoError(t, err)

	assert.Equal(t, skillsRoot, p.SkillsRoot)
	assert.True(t, p.NoSandbox)
}
