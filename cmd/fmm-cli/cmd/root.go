package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fmm-go/fmmcore/pkg/config"
	"github.com/fmm-go/fmmcore/pkg/telemetry"
	"github.com/fmm-go/fmmcore/pkg/utils"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger utils.Logger

	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "fmm-cli",
	Short: "A distributed fast multipole method engine",
	Long: `fmm-cli drives the FMM engine: partitioning bodies across ranks,
building per-rank octrees, exchanging local essential trees, and
summing Coulomb, Laplace, Helmholtz, or van der Waals potentials in
O(N) time instead of O(N^2).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		level := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			level = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(level, os.Stdout)
		utils.SetGlobalLogger(logger)

		shutdown, err := telemetry.Init(context.Background())
		if err != nil {
			logger.Warn("telemetry init failed, continuing without tracing: %v", err)
			shutdown = func(context.Context) error { return nil }
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			return telemetryShutdown(context.Background())
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file path (default: config.yaml searched in ., ./configs, /etc/fmm)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	binName := BinName()
	rootCmd.Example = `  # Run a single evaluation over a random body cloud and report accuracy
  ` + binName + ` run -n 5000 --kernel helmholtz

  # Start a server that periodically re-evaluates and exposes /metrics
  ` + binName + ` serve --metrics-addr :9090`
}

// GetLogger returns the logger configured by PersistentPreRunE.
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the configuration loaded by PersistentPreRunE.
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
