// Package runtime implements exec(): resolving a CallableId, validating
// arguments, racing execution against a timeout, and normalizing the
// result of either an upstream tool call or a skill's bundled-tool
// script into one ToolResult shape.
package runtime

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/gatewayerr"
	"github.com/gatekit/gatekit/internal/sandbox"
)

const defaultTimeoutMS = 30000

// CallToolFunc is the subset of upstream.Manager's surface Runtime needs,
// kept as a function type so tests can supply a fake without constructing
// a real Manager.
type CallToolFunc func(ctx context.Context, alias, name string, arguments map[string]interface{}) (*catalog.ToolResult, error)

// ExecContext is the input to Execute, matching the distilled spec's
// exec() contract.
type ExecContext struct {
	CallableID   catalog.CallableId
	Arguments    map[string]interface{}
	TimeoutMS    int64
	TraceEnabled bool
}

// Step is one accumulated trace entry when TraceEnabled is set.
type Step struct {
	StepIndex   int       `json:"step_index"`
	CallableID  string    `json:"callable_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// NotFoundError reports callable_not_found; kept as a concrete type (not
// just gatewayerr.Error) so callers can still type-assert for the id, with
// Unwrap exposing the gatewayerr.Kind to the facade's protocol-error
// translation.
type NotFoundError struct{ ID catalog.CallableId }

func (e *NotFoundError) Error() string { return fmt.Sprintf("callable not found: %s", e.ID) }
func (e *NotFoundError) Unwrap() error { return gatewayerr.NotFound(string(e.ID)) }

// ValidationError reports validation_failed.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return gatewayerr.ValidationFailed(e.Message) }

// Runtime executes tools and skills resolved through a catalog.Registry.
type Runtime struct {
	registry     *catalog.Registry
	callTool     CallToolFunc
	baseSandbox  sandbox.Config
	skillRootDir func(skillDir string) string
	hooks        HookRunner
}

// HookRunner drives a skill's optional hooks.js pre/post execution.
// internal/skillstore supplies the concrete implementation; Runtime only
// depends on this narrow interface to avoid an import cycle.
type HookRunner interface {
	RunPreExec(skillDir string, args map[string]interface{}) (map[string]interface{}, error)
	RunPostExec(skillDir string, result *catalog.ToolResult) (*catalog.ToolResult, error)
	HasHooks(skillDir string) bool
}

// New builds a Runtime. hooks may be nil, in which case hooks.js
// execution is skipped entirely.
func New(registry *catalog.Registry, callTool CallToolFunc, baseSandbox sandbox.Config, hooks HookRunner) *Runtime {
	return &Runtime{registry: registry, callTool: callTool, baseSandbox: baseSandbox, hooks: hooks}
}

// Execute runs ec.CallableID and returns its normalized ToolResult.
func (r *Runtime) Execute(ctx context.Context, ec ExecContext) (*catalog.ToolResult, error) {
	rec, ok := r.registry.Get(ec.CallableID)
	if !ok {
		return nil, &NotFoundError{ID: ec.CallableID}
	}

	if err := validateArguments(rec, ec.Arguments); err != nil {
		return nil, err
	}

	timeoutMS := ec.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = defaultTimeoutMS
	}
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
	defer cancel()

	var trace []Step
	result, err := r.dispatch(runCtx, rec, ec, &trace)

	if runCtx.Err() == context.DeadlineExceeded {
		return &catalog.ToolResult{
			Content: []catalog.ContentBlock{{Type: "text", Text: fmt.Sprintf("execution timed out after %dms", timeoutMS)}},
			IsError: true,
		}, nil
	}
	if err != nil {
		return nil, err
	}

	if ec.TraceEnabled && result != nil {
		structured := map[string]interface{}{"trace": trace}
		if result.StructuredContent != nil {
			structured["result"] = result.StructuredContent
		}
		result.StructuredContent = structured
	}

	return result, nil
}

func (r *Runtime) dispatch(ctx context.Context, rec *catalog.CallableRecord, ec ExecContext, trace *[]Step) (*catalog.ToolResult, error) {
	start := time.Now()
	var result *catalog.ToolResult
	var err error

	switch rec.Kind {
	case catalog.KindTool:
		result, err = r.executeTool(ctx, rec, ec.Arguments)
	case catalog.KindSkill:
		result, err = r.executeSkill(ctx, rec, ec.Arguments)
	default:
		err = fmt.Errorf("runtime: unknown callable kind %q", rec.Kind)
	}

	*trace = append(*trace, Step{
		StepIndex:   0,
		CallableID:  string(rec.ID),
		StartedAt:   start,
		CompletedAt: time.Now(),
		DurationMS:  time.Since(start).Milliseconds(),
		Success:     err == nil && (result == nil || !result.IsError),
		Error:       errString(err),
	})

	return result, err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// executeTool calls the upstream server and maps its content per the
// distilled spec's §4.6 content-type rules.
func (r *Runtime) executeTool(ctx context.Context, rec *catalog.CallableRecord, arguments map[string]interface{}) (*catalog.ToolResult, error) {
	if r.callTool == nil {
		return nil, fmt.Errorf("runtime: no upstream call function configured")
	}
	result, err := r.callTool(ctx, rec.ServerAlias, rec.UpstreamToolName, arguments)
	if err != nil {
		return nil, gatewayerr.UpstreamRequestFailed(err)
	}

	if len(result.Content) == 0 && !result.IsError {
		result.IsError = true
		result.Content = []catalog.ContentBlock{{Type: "text", Text: "upstream returned an empty result"}}
	}
	return result, nil
}

// executeSkill runs the first bundled tool via Sandbox, or returns an
// informational "load SKILL.md" result when there are none.
func (r *Runtime) executeSkill(ctx context.Context, rec *catalog.CallableRecord, arguments map[string]interface{}) (*catalog.ToolResult, error) {
	if len(rec.BundledTools) == 0 {
		return loadManifestResult(rec), nil
	}
	return r.executeBundledTool(ctx, rec, rec.BundledTools[0], arguments)
}

func loadManifestResult(rec *catalog.CallableRecord) *catalog.ToolResult {
	var b strings.Builder
	fmt.Fprintf(&b, "Skill %q has no bundled tools to execute directly.\n", rec.Name)
	if len(rec.Uses) > 0 {
		fmt.Fprintf(&b, "Declared uses: %s\n", strings.Join(rec.Uses, ", "))
	}
	if len(rec.AdditionalFiles) > 0 {
		fmt.Fprintf(&b, "Additional files: %s\n", strings.Join(rec.AdditionalFiles, ", "))
	}
	fmt.Fprintf(&b, "Load SKILL.md from %s for instructions.", rec.SkillDirectory)

	return &catalog.ToolResult{
		Content: []catalog.ContentBlock{{Type: "text", Text: b.String()}},
		StructuredContent: map[string]interface{}{
			"bundled_tools":    rec.BundledTools,
			"additional_files": rec.AdditionalFiles,
			"uses":             rec.Uses,
		},
		IsError: false,
	}
}

// executeBundledTool implements the temp-file argument contract: args
// serialized to pretty JSON in skill_args_<id>.json, exposed via
// SKILL_ARGS_FILE/SKILL_ARGS_JSON, working dir = the script's parent,
// allow_read extended with that dir and allow_write with the temp dir,
// file always removed on completion.
func (r *Runtime) executeBundledTool(ctx context.Context, rec *catalog.CallableRecord, tool catalog.BundledTool, arguments map[string]interface{}) (*catalog.ToolResult, error) {
	if len(tool.Command) == 0 {
		return nil, fmt.Errorf("runtime: bundled tool %q has no command", tool.Name)
	}

	if r.hooks != nil && r.hooks.HasHooks(rec.SkillDirectory) {
		adjusted, err := r.hooks.RunPreExec(rec.SkillDirectory, arguments)
		if err != nil {
			return nil, fmt.Errorf("runtime: preExec hook: %w", err)
		}
		arguments = adjusted
	}

	argsJSON, err := json.MarshalIndent(arguments, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("runtime: marshal arguments: %w", err)
	}

	id, err := randomID()
	if err != nil {
		return nil, err
	}
	tempDir := tempDirFor(rec.SkillDirectory)
	tempFile := filepath.Join(tempDir, fmt.Sprintf("skill_args_%s.json", id))
	if err := writeFile(tempFile, argsJSON); err != nil {
		return nil, fmt.Errorf("runtime: write skill args: %w", err)
	}
	defer removeFile(tempFile)

	workingDir := filepath.Dir(tool.Command[0])
	if workingDir == "." {
		workingDir = rec.SkillDirectory
	}

	cfg := r.baseSandbox
	cfg.AllowRead = append(append([]string(nil), cfg.AllowRead...), workingDir)
	cfg.AllowWrite = append(append([]string(nil), cfg.AllowWrite...), tempDir)

	env := map[string]string{
		"SKILL_ARGS_FILE": tempFile,
		"SKILL_ARGS_JSON": string(argsJSON),
	}

	sb := sandbox.New(cfg)
	result, err := sb.Execute(ctx, tool.Command[0], tool.Command[1:], workingDir, env)
	if err != nil {
		var notAvail *sandbox.NotAvailableError
		if errors.As(err, &notAvail) {
			return nil, gatewayerr.SandboxUnavailable(notAvail.Backend, notAvail.Reason)
		}
		return nil, gatewayerr.SandboxExecutionFailed(err.Error())
	}

	toolResult := bundledResultToToolResult(result)

	if r.hooks != nil && r.hooks.HasHooks(rec.SkillDirectory) {
		adjusted, err := r.hooks.RunPostExec(rec.SkillDirectory, toolResult)
		if err != nil {
			return nil, fmt.Errorf("runtime: postExec hook: %w", err)
		}
		toolResult = adjusted
	}

	return toolResult, nil
}

func bundledResultToToolResult(result *sandbox.Result) *catalog.ToolResult {
	if result.TimedOut {
		return &catalog.ToolResult{
			Content: []catalog.ContentBlock{{Type: "text", Text: "execution timed out: " + result.Stderr}},
			IsError: true,
		}
	}

	success := result.HasExit && result.ExitCode == 0
	content := []catalog.ContentBlock{{Type: "text", Text: result.Stdout}}

	var structured interface{}
	if success {
		var parsed interface{}
		if json.Unmarshal([]byte(result.Stdout), &parsed) == nil {
			structured = parsed
		}
	}
	if !success && result.Stderr != "" {
		content = append(content, catalog.ContentBlock{Type: "text", Text: result.Stderr})
	}

	return &catalog.ToolResult{
		Content:           content,
		StructuredContent: structured,
		IsError:           !success,
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0600)
}

func removeFile(path string) {
	os.Remove(path)
}

func randomID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func tempDirFor(skillDir string) string {
	if skillDir == "" {
		return "."
	}
	return skillDir
}

// validateArguments enforces conservative schema validation: every
// declared required key must be present as a top-level key of arguments.
func validateArguments(rec *catalog.CallableRecord, arguments map[string]interface{}) error {
	required, ok := rec.InputSchema["required"]
	if !ok {
		return nil
	}
	var keys []string
	switch list := required.(type) {
	case []interface{}:
		for _, r := range list {
			if key, ok := r.(string); ok {
				keys = append(keys, key)
			}
		}
	case []string:
		keys = list
	default:
		return nil
	}
	for _, key := range keys {
		if _, present := arguments[key]; !present {
			return &ValidationError{Message: fmt.Sprintf("validation_failed: missing required argument %q", key)}
		}
	}
	return nil
}
