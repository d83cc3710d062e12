package cmd

import (
	"github.com/spf13/cobra"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest coordinator tuning improvements",
	Long: `Derive tuning advice from live coordinator state: cache hit
rate, queue depth, rate-limit capacity, and circuit-breaker health.`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(c.OptimizationRecommendations())
}
