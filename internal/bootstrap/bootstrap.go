// Package bootstrap wires the registry, upstream manager, skill store,
// policy engine, runtime, and gateway from a loaded config.Config, shared
// by cmd/gatekitd (serving mode) and the CLI's --direct mode (in-process,
// no daemon). Grounded on the teacher's cmd/scooter run()'s
// profile-to-manager wiring, generalized from one profile.Manager per
// profile to one Gateway per process.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/config"
	"github.com/gatekit/gatekit/internal/credentials"
	"github.com/gatekit/gatekit/internal/gateway"
	"github.com/gatekit/gatekit/internal/logger"
	"github.com/gatekit/gatekit/internal/policy"
	"github.com/gatekit/gatekit/internal/runtime"
	"github.com/gatekit/gatekit/internal/skillstore"
	"github.com/gatekit/gatekit/internal/upstream"
)

const (
	clientName    = "gatekit"
	clientVersion = "0.1.0"
)

// System bundles every long-lived collaborator a running gateway needs,
// so callers can shut them down or inspect them directly (e.g. cmd/gatekitd
// calling Upstreams.WatchHealth, or a test asserting on Registry directly).
type System struct {
	Registry *catalog.Registry
	Search   *catalog.SearchIndex
	Upstreams *upstream.Manager
	Skills   *skillstore.Store
	Policy   *policy.Engine
	Runtime  *runtime.Runtime
	Gateway  *gateway.Gateway
}

// Build constructs a System from cfg: registers every configured upstream
// (best-effort — a failed connect leaves the server marked down rather
// than aborting startup) and syncs every configured skill source.
func Build(ctx context.Context, paths config.Paths, cfg config.Config) (*System, error) {
	registry := catalog.NewRegistry()
	search := catalog.NewSearchIndex(registry)

	skills := skillstore.New(paths.SkillsRoot, registry)
	if _, errs := skills.LoadAll(); len(errs) > 0 {
		for _, e := range errs {
			logger.Log("WARN", "skillstore", fmt.Sprintf("load: %v", e))
		}
	}
	repos := config.ToAgentSkillsRepos(cfg.Upstreams, cfg.AgentSkillsRepos)
	if len(repos) > 0 {
		if err := skills.Sync(repos); err != nil {
			logger.Log("WARN", "skillstore", fmt.Sprintf("sync: %v", err))
		}
	}

	creds := credentials.NewManager()
	upstreams := upstream.NewManager(registry, clientName, clientVersion)
	for _, uc := range config.ToUpstreamConfigs(cfg.Upstreams, creds) {
		if err := upstreams.AddServer(ctx, uc); err != nil {
			logger.Log("ERROR", "upstream", fmt.Sprintf("server %s failed to connect: %v", uc.Alias, err))
		}
	}

	engine := policy.New(cfg.Policy)
	rt := runtime.New(registry, upstreams.CallTool, cfg.Sandbox, skillstore.NewHooks())
	gw := gateway.New(registry, search, engine, rt, skills)

	return &System{
		Registry:  registry,
		Search:    search,
		Upstreams: upstreams,
		Skills:    skills,
		Policy:    engine,
		Runtime:   rt,
		Gateway:   gw,
	}, nil
}
