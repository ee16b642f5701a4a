package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/errors"
	"github.com/gatekit/gatekit/internal/cli/output"
)

var execDryRun bool

var execCmd = &cobra.Command{
	Use:   "exec <id> [key=value...]",
	Short: "Call a tool or skill by its callable id",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		c, err := buildClient(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		formatter := output.NewFormatter(outputFormat(), !jsonOutput)
		arguments := parseArgs(args[1:])

		result, err := c.Exec(ctx, args[0], arguments, execDryRun)
		if err != nil {
			classified := errors.Classify(err)
			fmt.Println(formatter.FormatError(classified))
			os.Exit(classified.ExitCode)
		}

		fmt.Println(formatter.FormatResult(output.NewCallResult(result)))
		if result.IsError {
			os.Exit(2)
		}
	},
}

// parseArgs turns key=value CLI tokens into a JSON-ish argument map,
// interpreting values that parse as a number or bool literally and
// everything else as a string.
func parseArgs(tokens []string) map[string]interface{} {
	out := make(map[string]interface{}, len(tokens))
	for _, tok := range tokens {
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = coerceArgValue(kv[1])
	}
	return out
}

func coerceArgValue(v string) interface{} {
	if v == "true" {
		return true
	}
	if v == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return n
	}
	return v
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().BoolVar(&execDryRun, "dry-run", false, "preview the call without executing it")
}
