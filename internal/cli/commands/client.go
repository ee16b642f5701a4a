package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/gatekit/gatekit/internal/bootstrap"
	"github.com/gatekit/gatekit/internal/cli/client"
	gwconfig "github.com/gatekit/gatekit/internal/config"
)

// buildClient returns an HTTP client against a running gatekitd, or (with
// --direct) boots the gateway in-process and wraps it directly — the CLI's
// two ways of reaching the four meta-tools, per SPEC_FULL.md §1.1.
func buildClient(ctx context.Context) (client.Client, error) {
	if !directMode {
		return client.NewGatewayClient(gatewayAddr, apiKey, requestTimeout()), nil
	}

	paths, err := gwconfig.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	configDir := paths.ConfigDir
	if cfgFile != "" {
		configDir = filepath.Dir(cfgFile)
	}
	cfg, err := gwconfig.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	sys, err := bootstrap.Build(ctx, paths, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return client.NewDirectClient(sys.Gateway), nil
}
