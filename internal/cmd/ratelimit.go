package cmd

import (
	"github.com/spf13/cobra"
)

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show rate-limit window status",
	Long: `Show the tracked rate-limit windows per request category (core,
search, graphql): limit, used, remaining, and when the window resets.
Requests queue instead of running once a window drops to its reserve
buffer.`,
	RunE: runRatelimit,
}

func init() {
	rootCmd.AddCommand(ratelimitCmd)
}

func runRatelimit(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(c.RateLimitStatus())
}
