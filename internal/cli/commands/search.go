package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/errors"
	"github.com/gatekit/gatekit/internal/cli/output"
)

var (
	searchKind  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search registered tools and skills by capability or name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		c, err := buildClient(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		formatter := output.NewFormatter(outputFormat(), !jsonOutput)
		out, err := c.Search(ctx, args[0], searchKind, searchLimit)
		if err != nil {
			classified := errors.Classify(err)
			fmt.Println(formatter.FormatError(classified))
			os.Exit(classified.ExitCode)
		}

		if s := formatter.FormatSearchMatches(out.Matches); s != "" {
			fmt.Println(s)
		}
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "filter by kind: tools, skills, or any")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum matches to return")
}

func outputFormat() output.Format {
	switch {
	case jsonOutput:
		return output.FormatJSON
	case rawOutput:
		return output.FormatRaw
	default:
		return output.FormatText
	}
}
