package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-coordinator/internal/coordinator"
)

var (
	branchBase          string
	branchRepos         []string
	branchStopOnFailure bool
)

var branchesCmd = &cobra.Command{
	Use:   "branches <branch-name>",
	Short: "Create the same branch across repositories",
	Long: `Create a feature branch with the same name in every selected
repository, in dependency order, so cross-repository work lands on
matching branches. Each repository is fetched and branched from the
base branch.

Examples:
  loqa-coord branches feature/streaming-audio
  loqa-coord branches fix/issue-42 --repos loqa-proto,loqa-hub --base develop`,
	Args: cobra.ExactArgs(1),
	RunE: runBranches,
}

func init() {
	branchesCmd.Flags().StringVar(&branchBase, "base", "main", "base branch to create from")
	branchesCmd.Flags().StringSliceVar(&branchRepos, "repos", nil, "repositories to include (default all)")
	branchesCmd.Flags().BoolVar(&branchStopOnFailure, "stop-on-failure", false, "skip remaining repositories after a failure")
	rootCmd.AddCommand(branchesCmd)
}

func runBranches(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.CreateCoordinatedBranches(cmd.Context(), args[0], branchRepos, branchBase, coordinator.WalkOptions{
		StopOnFailure: branchStopOnFailure,
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

func countFailed(result *coordinator.Result) int {
	failed := 0
	for _, r := range result.Results {
		if !r.Success && !r.Skipped {
			failed++
		}
	}
	return failed
}
