package cmd

import (
	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-coordinator/internal/graph"
)

var orderCategory string

var orderCmd = &cobra.Command{
	Use:   "order [repository...]",
	Short: "Resolve dependency-safe operation order",
	Long: `Resolve the order in which coordinated operations must touch the
given repositories so that every dependency is handled before its
dependents. With no arguments, orders the whole ecosystem.`,
	RunE: runOrder,
}

func init() {
	orderCmd.Flags().StringVar(&orderCategory, "category", "", "restrict to one category (protocol, core-service, plugins, ...)")
	rootCmd.AddCommand(orderCmd)
}

type orderOutput struct {
	Order []string `json:"order" yaml:"order"`
}

func runOrder(cmd *cobra.Command, args []string) error {
	c, err := newCoordinator()
	if err != nil {
		return err
	}
	defer c.Close()

	repos := args
	if orderCategory != "" {
		repos = c.Registry().ByCategory(graph.Category(orderCategory))
	}

	order, err := c.Registry().DependencyOrder(repos...)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return formatter.Format(orderOutput{Order: order})
}
