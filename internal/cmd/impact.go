package cmd

import (
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-coordinator/internal/impact"
)

var (
	impactFiles   []string
	impactMessage string
)

var impactCmd = &cobra.Command{
	Use:   "impact <repository>",
	Short: "Analyze the ripple effect of a change",
	Long: `Classify a change to one repository and report which dependent
repositories are affected, what each of them needs done, and an overall
complexity and effort estimate.

Examples:
  loqa-coord impact loqa-proto --file audio/audio.proto -m "feat!: new streaming API"
  loqa-coord impact loqa-hub -m "fix: close websocket on shutdown"`,
	Args: cobra.ExactArgs(1),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().StringSliceVar(&impactFiles, "file", nil, "changed file (repeatable)")
	impactCmd.Flags().StringVarP(&impactMessage, "message", "m", "", "commit message describing the change")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	analysis, err := impact.NewAnalyzer(c.Registry()).Analyze(args[0], impactFiles, impactMessage)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(analysis)
}
