package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/errors"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog stats: total callables, tools, skills, servers",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		c, err := buildClient(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		status, err := c.Status(ctx)
		if err != nil {
			classified := errors.Classify(err)
			fmt.Println(classified.Message)
			os.Exit(classified.ExitCode)
		}

		if jsonOutput {
			data, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(data))
			return
		}

		color.Cyan("gatekit status")
		fmt.Printf("  Callables: %d (%d tools, %d skills)\n", status.Stats.TotalCallables, status.Stats.Tools, status.Stats.Skills)
		fmt.Printf("  Servers:   %d\n", status.Stats.Servers)
		for _, s := range status.Servers {
			fmt.Printf("    - %s: %s (%d tools)\n", s.Alias, s.Health, s.ToolCount)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
