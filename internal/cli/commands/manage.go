package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gatekit/gatekit/internal/cli/client"
	"github.com/gatekit/gatekit/internal/cli/errors"
)

var (
	manageName        string
	manageVersion     string
	manageDescription string
	manageSkillMD     string
	manageFilename    string
)

var manageCmd = &cobra.Command{
	Use:   "manage",
	Short: "Create, inspect, update, or delete locally-authored skills",
}

var manageCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new skill",
	Run: func(cmd *cobra.Command, args []string) { runManage("create", "") },
}

var manageGetCmd = &cobra.Command{
	Use:   "get <skill-id>",
	Short: "Fetch a skill's SKILL.md content or a named bundled file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) { runManage("get", args[0]) },
}

var manageUpdateCmd = &cobra.Command{
	Use:   "update <skill-id>",
	Short: "Update an existing skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) { runManage("update", args[0]) },
}

var manageDeleteCmd = &cobra.Command{
	Use:   "delete <skill-id>",
	Short: "Delete a skill",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) { runManage("delete", args[0]) },
}

func runManage(operation, skillID string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout())
	defer cancel()

	c, err := buildClient(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	in := client.ManageInput{
		Operation:   operation,
		SkillID:     skillID,
		Name:        manageName,
		Version:     manageVersion,
		Description: manageDescription,
		SkillMD:     manageSkillMD,
		Filename:    manageFilename,
	}

	out, err := c.Manage(ctx, in)
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
	if out.Result != nil {
		fmt.Println(out.Result)
		return
	}
	fmt.Printf("%s: %s ok\n", out.Operation, out.SkillID)
}

func init() {
	rootCmd.AddCommand(manageCmd)
	manageCmd.AddCommand(manageCreateCmd, manageGetCmd, manageUpdateCmd, manageDeleteCmd)

	for _, c := range []*cobra.Command{manageCreateCmd, manageUpdateCmd} {
		c.Flags().StringVar(&manageName, "name", "", "skill name")
		c.Flags().StringVar(&manageVersion, "version", "", "skill version")
		c.Flags().StringVar(&manageDescription, "description", "", "skill description")
		c.Flags().StringVar(&manageSkillMD, "skill-md", "", "SKILL.md body")
	}
	manageGetCmd.Flags().StringVar(&manageFilename, "filename", "", "fetch one bundled file instead of SKILL.md")
}
