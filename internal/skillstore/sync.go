package skillstore

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatekit/gatekit/internal/logger"
)

const syncStateFileName = ".sync-state.json"

// RepoConfig is one entry of the external agent_skills_repos list passed
// to Sync.
type RepoConfig struct {
	Repo   string   // git URL or file:// path
	Ref    string   // optional branch/tag; defaults to the repo's default branch
	Skills []string // optional filter; nil means "all skills in the repo"
	Alias  string   // identifies this repo across Sync calls; defaults to Repo
}

// repoSyncState is one sidecar entry recorded per repo alias.
type repoSyncState struct {
	CommitSHA     string   `json:"commit_sha"`
	SyncedSkills  []string `json:"synced_skills"`
	LastSync      string   `json:"last_sync"`
}

type syncStateFile map[string]repoSyncState

// Sync reconciles s.root with configs: for each configured repo alias,
// shallow-clones it, copies in the directories containing SKILL.md
// (filtered by Skills if set), and removes any previously-synced skill
// whose repo alias is no longer present in configs. Grounded on the
// distilled spec's sync(repo_configs[]) contract plus
// original_source's exact git-command shape (see SPEC_FULL.md §4.7).
func (s *Store) Sync(configs []RepoConfig) error {
	state, err := s.loadSyncState()
	if err != nil {
		return fmt.Errorf("skillstore: load sync state: %w", err)
	}

	seenAliases := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		alias := cfg.Alias
		if alias == "" {
			alias = cfg.Repo
		}
		seenAliases[alias] = true

		synced, commitSHA, err := s.syncOneRepo(cfg)
		if err != nil {
			logger.Log("ERROR", "skillstore", fmt.Sprintf("sync %s: %v", alias, err))
			continue
		}
		state[alias] = repoSyncState{
			CommitSHA:    commitSHA,
			SyncedSkills: synced,
			LastSync:     nowRFC3339(),
		}
	}

	for alias, prev := range state {
		if seenAliases[alias] {
			continue
		}
		for _, name := range prev.SyncedSkills {
			if err := s.DeleteSkill(name); err != nil {
				logger.Log("WARN", "skillstore", fmt.Sprintf("sync cleanup: remove %s: %v", name, err))
			}
		}
		delete(state, alias)
	}

	return s.saveSyncState(state)
}

func (s *Store) syncOneRepo(cfg RepoConfig) (synced []string, commitSHA string, err error) {
	tmpDir, err := os.MkdirTemp("", "gatekit-skillsync-*")
	if err != nil {
		return nil, "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	cloneArgs := []string{"clone", "--depth", "1"}
	if cfg.Ref != "" {
		cloneArgs = append(cloneArgs, "--branch", cfg.Ref)
	}
	cloneArgs = append(cloneArgs, cfg.Repo, tmpDir)

	if out, err := exec.Command("git", cloneArgs...).CombinedOutput(); err != nil {
		return nil, "", fmt.Errorf("git clone: %w: %s", err, out)
	}

	shaOut, err := exec.Command("git", "-C", tmpDir, "rev-parse", "HEAD").Output()
	if err != nil {
		return nil, "", fmt.Errorf("git rev-parse: %w", err)
	}
	commitSHA = strings.TrimSpace(string(shaOut))

	skillDirs, err := findSkillDirs(tmpDir)
	if err != nil {
		return nil, commitSHA, fmt.Errorf("scan cloned repo: %w", err)
	}

	filter := make(map[string]bool, len(cfg.Skills))
	for _, name := range cfg.Skills {
		filter[name] = true
	}

	for _, dir := range skillDirs {
		name := filepath.Base(dir)
		if len(filter) > 0 && !filter[name] {
			continue
		}

		dest := filepath.Join(s.root, name)
		os.RemoveAll(dest)
		if err := copyDir(dir, dest); err != nil {
			logger.Log("WARN", "skillstore", fmt.Sprintf("sync copy %s: %v", name, err))
			continue
		}

		loaded, err := loadSkillDir(dest)
		if err != nil {
			logger.Log("WARN", "skillstore", fmt.Sprintf("sync register %s: %v", name, err))
			continue
		}
		if err := s.RegisterSkill(loaded); err != nil {
			logger.Log("WARN", "skillstore", fmt.Sprintf("sync register %s: %v", name, err))
			continue
		}
		synced = append(synced, name)
	}

	return synced, commitSHA, nil
}

// findSkillDirs lists the top-level directories of root that contain a
// SKILL.md file; deeper directories are not searched.
func findSkillDirs(root string) ([]string, error) {
	var out []string
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".git") {
			continue
		}
		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, "SKILL.md")); err == nil {
			out = append(out, dir)
		}
	}
	return out, nil
}

func copyDir(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dstPath, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) syncStatePath() string {
	return filepath.Join(s.root, syncStateFileName)
}

func (s *Store) loadSyncState() (syncStateFile, error) {
	data, err := os.ReadFile(s.syncStatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return syncStateFile{}, nil
		}
		return nil, err
	}
	var state syncStateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state == nil {
		state = syncStateFile{}
	}
	return state, nil
}

func (s *Store) saveSyncState(state syncStateFile) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.syncStatePath(), data, 0644)
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
