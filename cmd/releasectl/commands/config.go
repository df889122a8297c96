package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the releasectl configuration file.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration file",
	Long: `Create a default configuration file at ~/.releasectl/config.yaml

Example:
  releasectl config init`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.InitConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		configPath, _ := cli.GetConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", configPath)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <edge> <base-url>",
	Short: "Point an edge name at an ops API",
	Long: `Set the ops API base URL of an edge, creating it if needed.

Example:
  releasectl config set production https://ops.example.com`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Edges == nil {
			cfg.Edges = make(map[string]cli.EdgeConfig)
		}
		cfg.Edges[args[0]] = cli.EdgeConfig{BaseURL: args[1]}
		if cfg.DefaultEdge == "" {
			cfg.DefaultEdge = args[0]
		}

		if err := cli.SaveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s.base_url = %s\n", args[0], args[1])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Default Edge: %s\n\n", cfg.DefaultEdge)
		fmt.Fprintln(out, "Edges:")
		for name, ec := range cfg.Edges {
			fmt.Fprintf(out, "  %s: %s\n", name, ec.BaseURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configSetCmd, configListCmd)
}
