// Package commands implements gatekit's cobra CLI surface: search, schema,
// exec, manage, servers, skills, status — one subcommand per meta-tool plus
// the control-surface listings, grounded on the teacher's
// internal/cli/commands package and its persistent flag set.
package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// defaultGatewayAddr is gatekitd's default HTTP listen address.
const defaultGatewayAddr = "http://localhost:8420"

var (
	cfgFile     string
	profileName string
	jsonOutput  bool
	rawOutput   bool
	directMode  bool
	timeoutMS   int
	gatewayAddr string
	apiKey      string
)

var rootCmd = &cobra.Command{
	Use:   "gatekit",
	Short: "gatekit CLI - search, inspect, and call tools behind the gatekit gateway",
	Long: `gatekit fronts every configured MCP upstream and locally-authored skill
behind four meta-tools (search, schema, exec, manage). This CLI drives a
running gatekitd over its HTTP control surface, or runs the gateway
in-process with --direct for headless/CI invocation without a daemon.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path, --direct only: config.yaml is read from this file's directory (default is $SKILLS_CONFIG_DIR/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "default", "profile name (no per-profile config overlay is loaded)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "raw output (no formatting)")
	rootCmd.PersistentFlags().BoolVar(&directMode, "direct", false, "direct mode: run the gateway in-process instead of calling a daemon")
	rootCmd.PersistentFlags().IntVar(&timeoutMS, "timeout", 30000, "request timeout in milliseconds")
	rootCmd.PersistentFlags().StringVar(&gatewayAddr, "addr", defaultGatewayAddr, "gatekitd HTTP address")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "gatekitd API key, if one is configured")
}

func requestTimeout() time.Duration {
	return time.Duration(timeoutMS) * time.Millisecond
}
