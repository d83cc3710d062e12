package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-coordinator/internal/coordinator"
)

var (
	gatesRepos         []string
	gatesFix           bool
	gatesStopOnFailure bool
)

var gatesCmd = &cobra.Command{
	Use:   "gates",
	Short: "Run quality gates across repositories",
	Long: `Run each repository's configured quality checks in dependency
order. A failing required check fails the repository; optional checks
only report. With --fix, configured autofix commands run once before
the failing check is retried.`,
	RunE: runGates,
}

func init() {
	gatesCmd.Flags().StringSliceVar(&gatesRepos, "repos", nil, "repositories to include (default all)")
	gatesCmd.Flags().BoolVar(&gatesFix, "fix", false, "run autofix commands for failing checks")
	gatesCmd.Flags().BoolVar(&gatesStopOnFailure, "stop-on-failure", false, "skip remaining repositories after a failure")
	rootCmd.AddCommand(gatesCmd)
}

func runGates(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.RunCoordinatedQualityGates(cmd.Context(), gatesRepos, coordinator.WalkOptions{
		StopOnFailure: gatesStopOnFailure,
		Fix:           gatesFix,
	})
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := formatter.Format(result); err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("partial failure: %d of %d repositories failed", countFailed(result), len(result.Results))
	}
	return nil
}
