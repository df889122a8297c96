package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/cli"
)

var environmentsCmd = &cobra.Command{
	Use:     "environments",
	Aliases: []string{"envs"},
	Short:   "Show the environment directory the edge routes with",
}

var environmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every environment that currently has a URL",
	Long: `List the environment directory snapshot held by the edge.

Examples:
  releasectl environments list
  releasectl environments list --format yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		snap, err := c.GetEnvironments(cmd.Context(), "")
		if err != nil {
			return fmt.Errorf("failed to list environments: %w", err)
		}
		if len(snap.Environments) == 0 && cli.OutputFormat(format) == cli.FormatTable {
			fmt.Fprintln(cmd.OutOrStdout(), "No environments found")
			return nil
		}
		return cli.PrintEnvironments(cmd.OutOrStdout(), snap, cli.OutputFormat(format))
	},
}

var environmentsGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Show one environment and its traffic share",
	Long: `Show the URL of one environment, and its configured share if it is
part of the traffic split.

Examples:
  releasectl environments get master
  releasectl environments get new-app --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		env, err := c.GetEnvironment(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get environment: %w", err)
		}
		return cli.PrintEnvironment(cmd.OutOrStdout(), env, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(environmentsCmd)
	environmentsCmd.AddCommand(environmentsListCmd, environmentsGetCmd)
}
