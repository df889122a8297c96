package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hollowverse/releasemanager/internal/environments"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check an environments file",
	Long: `Parse an environments file and validate its weight table: names must be
unique and non-empty, weights positive and finite.

Example:
  releasectl validate environments.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := environments.LoadFile(args[0])
		if err != nil {
			return err
		}
		table, err := f.Table()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d weighted environments, %d previews, default %s\n",
			args[0], table.Len(), len(f.Previews), table.Default())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
