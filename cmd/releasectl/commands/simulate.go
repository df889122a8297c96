package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/cli"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/rollout"
)

var (
	simulateFile     string
	simulateTrials   int
	simulateSelector string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the traffic split selector offline",
	Long: `Draw picks from a selector built over an environments file and compare
the observed shares with the configured ones. No edge is contacted.

Examples:
  releasectl simulate --file environments.yaml
  releasectl simulate --file environments.yaml --trials 100000 --selector fair`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := environments.LoadFile(simulateFile)
		if err != nil {
			return err
		}
		table, err := f.Table()
		if err != nil {
			return err
		}

		sel, err := rollout.NewSelector(simulateSelector, table)
		if err != nil {
			return err
		}

		sim, err := cli.Simulate(table, sel, simulateSelector, simulateTrials)
		if err != nil {
			return fmt.Errorf("simulation failed: %w", err)
		}
		return cli.PrintSimulation(cmd.OutOrStdout(), sim, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVarP(&simulateFile, "file", "f", "environments.yaml", "Environments file")
	simulateCmd.Flags().IntVarP(&simulateTrials, "trials", "n", 10000, "Number of picks")
	simulateCmd.Flags().StringVar(&simulateSelector, "selector", rollout.NameWeighted, "Selector (weighted, fair)")
}
