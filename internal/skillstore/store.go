package skillstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gatekit/gatekit/internal/catalog"
)

// scriptInterpreters maps bundled-tool script extensions to the
// interpreter invocation the distilled spec names.
var scriptInterpreters = map[string]string{
	".py": "python3",
	".sh": "bash",
	".js": "node",
}

// docAndManifestFiles are excluded from a skill's "additional files"
// listing since they are already represented structurally.
var docAndManifestFiles = map[string]bool{
	"skill.json": true,
	"SKILL.md":   true,
}

// Store loads, creates, updates, deletes, and syncs skill packages
// rooted at one directory, registering their CallableRecords into a
// shared catalog.Registry. Grounded on the teacher's
// internal/domain/profile.Store directory-backed load/save pattern,
// generalized from one flat YAML file to many skill directories.
type Store struct {
	root     string
	registry *catalog.Registry
}

// New builds a Store rooted at root, backed by registry.
func New(root string, registry *catalog.Registry) *Store {
	return &Store{root: root, registry: registry}
}

// loadedSkill is the intermediate representation LoadAll/RegisterSkill
// work from, regardless of which on-disk format produced it.
type loadedSkill struct {
	dir         string
	id          string
	version     string
	title       string
	description string
	inputSchema map[string]any
	riskTier    string
	uses        []string
	skillMD     string
}

// LoadAll scans every top-level directory under root and registers the
// skills it finds, skipping (and logging via the returned errs slice)
// directories that fail to parse.
func (s *Store) LoadAll() (registered int, errs []error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, []error{fmt.Errorf("skillstore: read root: %w", err)}
	}

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		loaded, err := loadSkillDir(dir)
		if err != nil {
			errs = append(errs, fmt.Errorf("skillstore: %s: %w", entry.Name(), err))
			continue
		}
		if err := s.RegisterSkill(loaded); err != nil {
			errs = append(errs, fmt.Errorf("skillstore: %s: %w", entry.Name(), err))
			continue
		}
		registered++
	}
	return registered, errs
}

// loadSkillDir parses one skill directory, preferring skill.json
// (manifest format) when present and falling back to SKILL.md
// frontmatter.
func loadSkillDir(dir string) (*loadedSkill, error) {
	manifestPath := filepath.Join(dir, "skill.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		m, err := ParseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("invalid skill.json: %w", err)
		}
		skillMD, _ := os.ReadFile(filepath.Join(dir, "SKILL.md"))
		return &loadedSkill{
			dir: dir, id: m.ID, version: m.Version, title: m.Title,
			description: m.Description, inputSchema: m.Inputs,
			riskTier: m.RiskTier, uses: m.ToolPolicy.Allow, skillMD: string(skillMD),
		}, nil
	}

	mdPath := filepath.Join(dir, "SKILL.md")
	data, err := os.ReadFile(mdPath)
	if err != nil {
		return nil, fmt.Errorf("no skill.json or SKILL.md found: %w", err)
	}

	fm, body, ok, err := ParseFrontmatter(string(data))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("SKILL.md has no frontmatter block and no skill.json is present")
	}

	dirName := filepath.Base(dir)
	if fm.Name != dirName {
		return nil, fmt.Errorf("frontmatter name %q does not match directory %q", fm.Name, dirName)
	}
	if err := ValidateName(fm.Name); err != nil {
		return nil, err
	}

	return &loadedSkill{
		dir: dir, id: fm.Name, version: "0.0.0", title: fm.Name,
		description: fm.Description, inputSchema: map[string]any{},
		uses: fm.AllowedToolsList(), skillMD: body,
	}, nil
}

// RegisterSkill computes the SchemaDigest, derives the CallableId,
// discovers bundled tools and additional files, and inserts the
// CallableRecord into the registry.
func (s *Store) RegisterSkill(loaded *loadedSkill) error {
	if loaded.version == "" {
		loaded.version = "0.0.0"
	}
	if loaded.inputSchema == nil {
		loaded.inputSchema = map[string]any{}
	}

	schemaJSON, err := json.Marshal(loaded.inputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema: %w", err)
	}
	digest, err := catalog.DigestSchema(schemaJSON)
	if err != nil {
		return fmt.Errorf("digest input schema: %w", err)
	}

	bundledTools, additionalFiles, err := discoverFiles(loaded.dir)
	if err != nil {
		return fmt.Errorf("discover skill files: %w", err)
	}

	rec := &catalog.CallableRecord{
		ID:              catalog.NewSkillId(loaded.id, loaded.version),
		Kind:            catalog.KindSkill,
		FQName:          catalog.FQName(catalog.KindSkill, "", loaded.id),
		Name:            loaded.id,
		Title:           loaded.title,
		Description:     loaded.description,
		InputSchema:     loaded.inputSchema,
		SchemaDigest:    digest,
		SkillVersion:    loaded.version,
		Uses:            loaded.uses,
		SkillDirectory:  loaded.dir,
		BundledTools:    bundledTools,
		AdditionalFiles: additionalFiles,
		RiskTier:        catalog.ParseRiskTier(loaded.riskTier),
	}
	s.registry.Register(rec)
	return nil
}

// discoverFiles walks dir (non-recursively, matching the distilled
// spec's "everything not manifest/docs/scripts" rule at the top level)
// classifying .py/.sh/.js files as bundled tools and everything else as
// an additional file.
func discoverFiles(dir string) ([]catalog.BundledTool, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var bundled []catalog.BundledTool
	var additional []string

	for _, entry := range entries {
		if entry.IsDir() || docAndManifestFiles[entry.Name()] {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if interpreter, ok := scriptInterpreters[ext]; ok {
			scriptPath := filepath.Join(dir, entry.Name())
			tool := catalog.BundledTool{
				Name:    strings.TrimSuffix(entry.Name(), ext),
				Command: []string{interpreter, scriptPath},
			}
			schemaPath := scriptPath + ".schema.json"
			if data, err := os.ReadFile(schemaPath); err == nil {
				var schema map[string]any
				if json.Unmarshal(data, &schema) == nil {
					tool.Schema = schema
				}
			}
			bundled = append(bundled, tool)
			continue
		}
		if strings.HasSuffix(entry.Name(), ".schema.json") {
			continue
		}
		additional = append(additional, entry.Name())
	}

	sort.Slice(bundled, func(i, j int) bool { return bundled[i].Name < bundled[j].Name })
	sort.Strings(additional)
	return bundled, additional, nil
}

// CreateRequest is the input to CreateSkill/UpdateSkill.
type CreateRequest struct {
	Name        string
	Version     string
	Description string
	SkillMD     string
	InputSchema map[string]any
}

// CreateSkill writes a manifest + SKILL.md under a new directory and
// registers it; on any failure the partially created directory is
// removed.
func (s *Store) CreateSkill(req CreateRequest) error {
	if err := ValidateName(req.Name); err != nil {
		return err
	}
	dir := filepath.Join(s.root, req.Name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("skillstore: skill %q already exists", req.Name)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("skillstore: create directory: %w", err)
	}

	if err := s.writeSkillFiles(dir, req); err != nil {
		os.RemoveAll(dir)
		return err
	}

	loaded, err := loadSkillDir(dir)
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("skillstore: reload after create: %w", err)
	}
	if err := s.RegisterSkill(loaded); err != nil {
		os.RemoveAll(dir)
		return err
	}
	return nil
}

// UpdateSkill overwrites an existing skill's manifest + SKILL.md and
// re-registers it, replacing its previous CallableRecord wholesale.
func (s *Store) UpdateSkill(id string, req CreateRequest) error {
	dir := filepath.Join(s.root, id)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("skillstore: skill %q not found: %w", id, err)
	}
	if err := s.writeSkillFiles(dir, req); err != nil {
		return err
	}
	loaded, err := loadSkillDir(dir)
	if err != nil {
		return fmt.Errorf("skillstore: reload after update: %w", err)
	}
	return s.RegisterSkill(loaded)
}

func (s *Store) writeSkillFiles(dir string, req CreateRequest) error {
	version := req.Version
	if version == "" {
		version = "0.0.0"
	}
	manifest := &Manifest{
		ID:          req.Name,
		Version:     version,
		Description: req.Description,
		Inputs:      req.InputSchema,
		Entrypoint:  EntrypointScript,
	}
	data, err := manifest.Marshal()
	if err != nil {
		return fmt.Errorf("skillstore: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skill.json"), data, 0644); err != nil {
		return fmt.Errorf("skillstore: write skill.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(req.SkillMD), 0644); err != nil {
		return fmt.Errorf("skillstore: write SKILL.md: %w", err)
	}
	return nil
}

// DeleteSkill removes a skill from the registry and deletes its
// directory on disk.
func (s *Store) DeleteSkill(id string) error {
	rec, ok := s.findByName(id)
	if !ok {
		return fmt.Errorf("skillstore: skill %q not found", id)
	}
	s.registry.Remove(rec.ID)
	return os.RemoveAll(rec.SkillDirectory)
}

func (s *Store) findByName(name string) (*catalog.CallableRecord, bool) {
	return s.registry.GetByFQName(catalog.FQName(catalog.KindSkill, "", name))
}

// SkillContent is the progressive-disclosure payload for manage's
// get-skill operation.
type SkillContent struct {
	SkillMD         string                `json:"skill_md"`
	AdditionalFiles []string              `json:"additional_files"`
	BundledTools    []catalog.BundledTool `json:"bundled_tools"`
	UsesTools       []string              `json:"uses_tools"`
}

// LoadSkillContent returns id's SKILL.md body plus its bundled-tool and
// additional-file listing for progressive disclosure.
func (s *Store) LoadSkillContent(id string) (*SkillContent, error) {
	rec, ok := s.findByName(id)
	if !ok {
		return nil, fmt.Errorf("skillstore: skill %q not found", id)
	}
	data, err := os.ReadFile(filepath.Join(rec.SkillDirectory, "SKILL.md"))
	if err != nil {
		return nil, fmt.Errorf("skillstore: read SKILL.md: %w", err)
	}
	return &SkillContent{
		SkillMD:         string(data),
		AdditionalFiles: rec.AdditionalFiles,
		BundledTools:    rec.BundledTools,
		UsesTools:       rec.Uses,
	}, nil
}

// LoadSkillFile reads filename from within id's skill directory,
// rejecting absolute paths, ".." components, and anything that
// canonicalizes outside the skill directory.
func (s *Store) LoadSkillFile(id, filename string) ([]byte, error) {
	rec, ok := s.findByName(id)
	if !ok {
		return nil, fmt.Errorf("skillstore: skill %q not found", id)
	}
	if filepath.IsAbs(filename) || strings.Contains(filename, "..") {
		return nil, fmt.Errorf("skillstore: invalid filename %q", filename)
	}

	target := filepath.Join(rec.SkillDirectory, filename)
	cleanTarget, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("skillstore: resolve path: %w", err)
	}
	cleanDir, err := filepath.Abs(rec.SkillDirectory)
	if err != nil {
		return nil, fmt.Errorf("skillstore: resolve skill directory: %w", err)
	}
	if cleanTarget != cleanDir && !strings.HasPrefix(cleanTarget, cleanDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("skillstore: path %q escapes skill directory", filename)
	}

	return os.ReadFile(cleanTarget)
}

// ValidationResult is the output of ValidateSkill.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateSkill checks id format, semver, description bounds, input
// schema shape, risk tier parse, self-reference cycles, and the
// registry-resolvability of its declared uses (warning-level).
func (s *Store) ValidateSkill(id string) *ValidationResult {
	result := &ValidationResult{Valid: true}

	rec, ok := s.findByName(id)
	if !ok {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("skill %q not found", id))
		return result
	}

	if err := ValidateName(rec.Name); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}
	if _, err := semver.NewVersion(rec.SkillVersion); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("version %q is not valid semver", rec.SkillVersion))
	}
	if len(rec.Description) > 1024 {
		result.Errors = append(result.Errors, "description exceeds 1024 characters")
	}
	if rec.InputSchema == nil {
		result.Errors = append(result.Errors, "input schema is missing")
	}
	if rec.RiskTier == catalog.RiskUnknown {
		result.Warnings = append(result.Warnings, "risk_tier is unset or unrecognized, defaulting to unknown")
	}

	for _, use := range rec.Uses {
		if use == rec.FQName {
			result.Errors = append(result.Errors, fmt.Sprintf("self-reference cycle: %q declares use of itself", use))
			continue
		}
		if _, ok := s.registry.GetByFQName(use); !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("declared use %q does not resolve in the registry", use))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
