package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/errors"
)

var schemaFormat string

var schemaCmd = &cobra.Command{
	Use:   "schema <id>",
	Short: "Fetch a callable's input schema and/or human-readable signature",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
		defer cancel()

		c, err := buildClient(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		out, err := c.Schema(ctx, args[0], schemaFormat)
		if err != nil {
			classified := errors.Classify(err)
			fmt.Println(classified.Message)
			os.Exit(classified.ExitCode)
		}

		if jsonOutput {
			data, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(data))
			return
		}
		if out.Signature != "" {
			fmt.Println(out.Signature)
		}
		if out.JSONSchema != nil {
			data, _ := json.MarshalIndent(out.JSONSchema, "", "  ")
			fmt.Println(string(data))
		}
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "both", "json_schema, signature, or both")
}
