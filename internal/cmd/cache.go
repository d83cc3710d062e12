package cmd

import (
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Show request cache statistics",
	RunE:  runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(c.CacheStats())
}
