// Package sandbox implements the gateway's execution backends for
// bundled tools and skills: none, timeout, restricted (rlimits), a
// bubblewrap container, and a WASM runtime. Grounded verbatim on
// original_source/src/execution/sandbox.rs and
// original_source/src/execution/wasm.rs.
package sandbox

// Backend selects which of the five execution strategies runs a command.
type Backend string

const (
	BackendNone       Backend = "none"
	BackendTimeout    Backend = "timeout"
	BackendRestricted Backend = "restricted"
	BackendBubblewrap Backend = "bubblewrap"
	BackendWasm       Backend = "wasm"
)

// Preset names a predefined Config for common use cases, letting a
// server/tool config say `preset: strict` instead of spelling out every
// field.
type Preset string

const (
	PresetDefault    Preset = "default"
	PresetDevelopment Preset = "development"
	PresetStandard   Preset = "standard"
	PresetStrict     Preset = "strict"
	PresetNetwork    Preset = "network"
	PresetFilesystem Preset = "filesystem"
	PresetWasm       Preset = "wasm"
)

// ToConfig resolves a preset name to its full Config.
func (p Preset) ToConfig() Config {
	switch p {
	case PresetDevelopment:
		return Development()
	case PresetStandard:
		return Standard()
	case PresetStrict:
		return Strict()
	case PresetNetwork:
		return Network()
	case PresetFilesystem:
		return Filesystem(nil, nil)
	case PresetWasm:
		return WasmOptimized()
	default:
		return Default()
	}
}

// Config is a fully resolved sandbox configuration for one execution.
type Config struct {
	Backend         Backend  `yaml:"backend" toml:"backend"`
	TimeoutMS       int64    `yaml:"timeout_ms" toml:"timeout_ms"`
	AllowRead       []string `yaml:"allow_read" toml:"allow_read"`
	AllowWrite      []string `yaml:"allow_write" toml:"allow_write"`
	AllowNetwork    bool     `yaml:"allow_network" toml:"allow_network"`
	MaxMemoryBytes  int64    `yaml:"max_memory_bytes" toml:"max_memory_bytes"`
	MaxCPUSeconds   int64    `yaml:"max_cpu_seconds" toml:"max_cpu_seconds"`
}

// Default is the global-default config: timeout backend, 30s, 512MB,
// 30 CPU-seconds, no network.
func Default() Config {
	return Config{
		Backend:        BackendTimeout,
		TimeoutMS:      30000,
		AllowNetwork:   false,
		MaxMemoryBytes: 512 * 1024 * 1024,
		MaxCPUSeconds:  30,
	}
}

// Development is minimal sandboxing, maximum convenience; timeout only,
// network allowed. Trusted environments only.
func Development() Config {
	return Config{
		Backend:        BackendTimeout,
		TimeoutMS:      60000,
		AllowNetwork:   true,
		MaxMemoryBytes: 1024 * 1024 * 1024,
		MaxCPUSeconds:  60,
	}
}

// Standard is an alias for Default: the recommended balance for
// production bundled-tool execution.
func Standard() Config { return Default() }

// Strict uses bubblewrap with minimal permissions, for untrusted code.
func Strict() Config {
	return Config{
		Backend:        BackendBubblewrap,
		TimeoutMS:      10000,
		AllowNetwork:   false,
		MaxMemoryBytes: 256 * 1024 * 1024,
		MaxCPUSeconds:  10,
	}
}

// Network allows network access via the restricted backend, for
// search/API/fetch tools.
func Network() Config {
	return Config{
		Backend:        BackendRestricted,
		TimeoutMS:      30000,
		AllowNetwork:   true,
		MaxMemoryBytes: 512 * 1024 * 1024,
		MaxCPUSeconds:  30,
	}
}

// Filesystem allows controlled read/write access via the restricted
// backend, for file editors and data processors.
func Filesystem(readPaths, writePaths []string) Config {
	return Config{
		Backend:        BackendRestricted,
		TimeoutMS:      30000,
		AllowRead:      readPaths,
		AllowWrite:     writePaths,
		AllowNetwork:   false,
		MaxMemoryBytes: 512 * 1024 * 1024,
		MaxCPUSeconds:  30,
	}
}

// WasmOptimized tunes limits for WASM module execution. The WASM backend
// mounts AllowRead directories read-only into the module and does not
// consult AllowWrite or AllowNetwork.
func WasmOptimized() Config {
	return Config{
		Backend:        BackendWasm,
		TimeoutMS:      30000,
		AllowNetwork:   false,
		MaxMemoryBytes: 256 * 1024 * 1024,
		MaxCPUSeconds:  30,
	}
}

// Override is a partial configuration applied on top of a preset or base
// Config, used for per-server and per-tool sandbox_config overrides in
// the upstream/skill config tree. Nil pointer fields mean "inherit".
type Override struct {
	Preset         *Preset  `yaml:"preset,omitempty" toml:"preset,omitempty"`
	Backend        *Backend `yaml:"backend,omitempty" toml:"backend,omitempty"`
	TimeoutMS      *int64   `yaml:"timeout_ms,omitempty" toml:"timeout_ms,omitempty"`
	AllowNetwork   *bool    `yaml:"allow_network,omitempty" toml:"allow_network,omitempty"`
	MaxMemoryBytes *int64   `yaml:"max_memory_bytes,omitempty" toml:"max_memory_bytes,omitempty"`
	MaxCPUSeconds  *int64   `yaml:"max_cpu_seconds,omitempty" toml:"max_cpu_seconds,omitempty"`
	AllowRead      []string `yaml:"allow_read,omitempty" toml:"allow_read,omitempty"`
	AllowWrite     []string `yaml:"allow_write,omitempty" toml:"allow_write,omitempty"`
}

// Resolve applies this override to base, starting from the override's
// preset (if any) rather than base when one is specified, then applying
// individual field overrides, and finally extending (not replacing) the
// read/write path lists.
func (o *Override) Resolve(base Config) Config {
	config := base
	if o.Preset != nil {
		config = o.Preset.ToConfig()
	}

	if o.Backend != nil {
		config.Backend = *o.Backend
	}
	if o.TimeoutMS != nil {
		config.TimeoutMS = *o.TimeoutMS
	}
	if o.AllowNetwork != nil {
		config.AllowNetwork = *o.AllowNetwork
	}
	if o.MaxMemoryBytes != nil {
		config.MaxMemoryBytes = *o.MaxMemoryBytes
	}
	if o.MaxCPUSeconds != nil {
		config.MaxCPUSeconds = *o.MaxCPUSeconds
	}
	config.AllowRead = append(append([]string(nil), config.AllowRead...), o.AllowRead...)
	config.AllowWrite = append(append([]string(nil), config.AllowWrite...), o.AllowWrite...)

	return config
}

// ForTool layers server and tool overrides onto a base config, server
// first, tool second — tool-level settings win ties.
func ForTool(base Config, serverOverride, toolOverride *Override) Config {
	config := base
	if serverOverride != nil {
		config = serverOverride.Resolve(config)
	}
	if toolOverride != nil {
		config = toolOverride.Resolve(config)
	}
	return config
}
