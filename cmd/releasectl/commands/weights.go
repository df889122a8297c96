package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/cli"
)

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Show the traffic split weight table",
	Long: `Show the weight table and selector the edge splits fresh sessions with.

Examples:
  releasectl weights
  releasectl weights --edge production --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		weights, err := c.GetWeights(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get weights: %w", err)
		}
		return cli.PrintWeights(cmd.OutOrStdout(), weights, cli.OutputFormat(format))
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)
}
