package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-coordinator/internal/config"
	"github.com/loqalabs/loqa-coordinator/internal/coordinator"
	"github.com/loqalabs/loqa-coordinator/internal/log"
	"github.com/loqalabs/loqa-coordinator/internal/metrics"
	"github.com/loqalabs/loqa-coordinator/internal/ux"
)

// defaultConfigFile is looked up in the working directory when --config
// is not given.
const defaultConfigFile = "coordinator.yaml"

var rootCmd = &cobra.Command{
	Use:   "loqa-coord",
	Short: "Cross-repository operation coordinator for the loqa ecosystem",
	Long: `loqa-coord coordinates automated operations (branch creation, quality
gates, issue updates) across the interdependent loqa repositories. It
resolves dependency order, analyzes change impact, and protects the
rate-limited remote API with caching, batching, circuit breaking, and
retries.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	cfgFile       string
	outputFormat  string
	verboseOutput bool
	workspaceRoot string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a cancellation context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./"+defaultConfigFile+")")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseOutput, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "workspace", "", "override the workspace root directory")
}

// loadConfig resolves the effective configuration: the --config file, the
// default file if present, or built-in defaults.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	switch {
	case cfgFile != "":
		cfg, err = config.Load(cfgFile)
	default:
		if _, statErr := os.Stat(defaultConfigFile); statErr == nil {
			cfg, err = config.Load(defaultConfigFile)
		} else {
			cfg = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	if workspaceRoot != "" {
		cfg.WorkspaceRoot = workspaceRoot
	}
	return cfg, nil
}

// setupLogging configures the process logger from the global flags.
func setupLogging() *log.Logger {
	logConfig := log.DefaultConfig()
	if verboseOutput {
		logConfig.Level = log.LevelDebug
	}
	logger := log.New(logConfig)
	log.SetDefaultLogger(logger)
	return logger
}

// newCoordinator builds a coordinator from the effective configuration.
func newCoordinator() (*coordinator.Coordinator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return coordinator.New(cfg,
		coordinator.WithLogger(setupLogging()),
		coordinator.WithMetrics(metrics.GetDefault()),
	)
}

// newFormatter builds the output formatter selected by --format.
func newFormatter(w io.Writer) (ux.Formatter, error) {
	return ux.NewFormatter(outputFormat, &ux.FormatterOptions{Writer: w})
}
