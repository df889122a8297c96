package commands

import (
	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/cli"
	"github.com/hollowverse/releasemanager/internal/client"
)

var (
	// Global flags
	baseURL string
	edge    string
	format  string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "releasectl",
	Short: "Inspect and rehearse the release manager edge",
	Long: `releasectl talks to the ops listener of a release manager edge and
works offline on environments files.

Examples:
  releasectl environments list
  releasectl environments get beta --format json
  releasectl weights --edge production
  releasectl simulate --file environments.yaml --trials 10000 --selector fair
  releasectl validate environments.yaml`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the ops API (overrides config)")
	rootCmd.PersistentFlags().StringVar(&edge, "edge", "", "Edge name from ~/.releasectl/config.yaml")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
}

func newClient() (*client.Client, error) {
	u, err := cli.ResolveBaseURL(edge, baseURL)
	if err != nil {
		return nil, err
	}
	return client.NewClient(u), nil
}
