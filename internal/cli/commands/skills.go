package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/errors"
	"github.com/gatekit/gatekit/internal/cli/output"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List registered skills",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		c, err := buildClient(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		formatter := output.NewFormatter(outputFormat(), !jsonOutput)
		status, err := c.Status(ctx)
		if err != nil {
			classified := errors.Classify(err)
			fmt.Println(formatter.FormatError(classified))
			os.Exit(classified.ExitCode)
		}

		if s := formatter.FormatSkills(status.Skills); s != "" {
			fmt.Println(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(skillsCmd)
}
