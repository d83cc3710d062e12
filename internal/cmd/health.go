package cmd

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report provider and circuit-breaker health",
	Long: `Check every registered provider and snapshot every circuit
breaker. A breaker that is open or carrying a high error rate shows up
here before it starts rejecting coordinated operations.`,
	RunE: runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(c.ProviderHealthReport(cmd.Context()))
}
