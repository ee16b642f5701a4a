package skillstore

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekit/gatekit/internal/catalog"
)

func hasGit(t *testing.T) bool {
	t.Helper()
	_, err := exec.LookPath("git")
	return err == nil
}

// TestCreateGetDeleteSkillRoundTrip covers scenario (F).
func TestCreateGetDeleteSkillRoundTrip(t *testing.T) {
	root := t.TempDir()
	reg := catalog.NewRegistry()
	store := New(root, reg)

	err := store.CreateSkill(CreateRequest{
		Name:        "x",
		Version:     "1.0.0",
		Description: "d",
		SkillMD:     "# x",
	})
	require.NoError(t, err)

	manifestPath := filepath.Join(root, "x", "skill.json")
	mdPath := filepath.Join(root, "x", "SKILL.md")
	_, err = os.Stat(manifestPath)
	require.NoError(t, err)
	_, err = os.Stat(mdPath)
	require.NoError(t, err)

	content, err := store.LoadSkillContent("x")
	require.NoError(t, err)
	assert.Contains(t, content.SkillMD, "# x")

	require.NoError(t, store.DeleteSkill("x"))
	_, err = os.Stat(filepath.Join(root, "x"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.LoadSkillContent("x")
	assert.Error(t, err)
}

func TestLoadSkillFileRejectsPathTraversal(t *testing.T) {
	root := t.TempDir()
	reg := catalog.NewRegistry()
	store := New(root, reg)
	require.NoError(t, store.CreateSkill(CreateRequest{Name: "y", Version: "1.0.0", SkillMD: "# y"}))

	_, err := store.LoadSkillFile("y", "../../etc/passwd")
	assert.Error(t, err)

	_, err = store.LoadSkillFile("y", "/etc/passwd")
	assert.Error(t, err)

	data, err := store.LoadSkillFile("y", "SKILL.md")
	require.NoError(t, err)
	assert.Contains(t, string(data), "# y")
}

func TestFrontmatterNameMustMatchDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "alpha")
	require.NoError(t, os.MkdirAll(dir, 0755))

	md := "---\nname: beta\ndescription: mismatched\n---\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(md), 0644))

	_, err := loadSkillDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match directory")
}

func TestBundledToolDiscoveryByExtension(t *testing.T) {
	root := t.TempDir()
	reg := catalog.NewRegistry()
	store := New(root, reg)
	require.NoError(t, store.CreateSkill(CreateRequest{Name: "scripted", Version: "1.0.0", SkillMD: "# scripted"}))

	dir := filepath.Join(root, "scripted")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.py"), []byte("print('hi')"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0644))

	loaded, err := loadSkillDir(dir)
	require.NoError(t, err)
	require.NoError(t, store.RegisterSkill(loaded))

	rec, ok := reg.GetByFQName("skill.scripted")
	require.True(t, ok)
	require.Len(t, rec.BundledTools, 1)
	assert.Equal(t, []string{"python3", filepath.Join(dir, "run.py")}, rec.BundledTools[0].Command)
	assert.Equal(t, []string{"notes.txt"}, rec.AdditionalFiles)
}

// TestSyncReconciliation covers scenario (G): a file:// repo with
// directories a/ and b/ each containing a valid SKILL.md; after Sync,
// only the filtered skill ("a") exists and the sidecar records a commit
// SHA. Removing the repo config and re-running Sync deletes it.
func TestSyncReconciliation(t *testing.T) {
	if !hasGit(t) {
		t.Skip("git not available")
	}

	repoDir := t.TempDir()
	runGit(t, repoDir, "init", "-q")
	runGit(t, repoDir, "config", "user.email", "test@example.com")
	runGit(t, repoDir, "config", "user.name", "test")

	for _, name := range []string{"a", "b"} {
		dir := filepath.Join(repoDir, name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		md := "---\nname: " + name + "\ndescription: d\n---\nbody\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(md), 0644))
	}
	runGit(t, repoDir, "add", "-A")
	runGit(t, repoDir, "commit", "-q", "-m", "initial")

	skillsRoot := t.TempDir()
	reg := catalog.NewRegistry()
	store := New(skillsRoot, reg)

	fileURL := "file://" + repoDir
	configs := []RepoConfig{{Repo: fileURL, Skills: []string{"a"}}}

	require.NoError(t, store.Sync(configs))

	_, err := os.Stat(filepath.Join(skillsRoot, "a"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(skillsRoot, "b"))
	assert.True(t, os.IsNotExist(err))

	state, err := store.loadSyncState()
	require.NoError(t, err)
	entry, ok := state[fileURL]
	require.True(t, ok)
	assert.NotEmpty(t, entry.CommitSHA)
	assert.Equal(t, []string{"a"}, entry.SyncedSkills)

	require.NoError(t, store.Sync(nil))
	_, err = os.Stat(filepath.Join(skillsRoot, "a"))
	assert.True(t, os.IsNotExist(err))
}

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}
