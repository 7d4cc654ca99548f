package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/miamirabelli/lorenzGNN/pkg/lorenzgnn"
)

var (
	cfgFile       string
	storeOverride string
	dbOverride    string

	rootCmd = &cobra.Command{
		Use:   "lorenzctl",
		Short: "Train and evaluate graph networks on two-layer Lorenz-96 dynamics",
		Long: `lorenzctl generates spatiotemporal trajectories of the two-layer
Lorenz-96 system, trains graph neural networks to forecast them over
multistep rollouts, and tracks runs, checkpoints and metrics.`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./lorenzgnn.yaml)")
	rootCmd.PersistentFlags().StringVar(&storeOverride, "store", "", "checkpoint store backend (memory or sqlite)")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "sqlite database path")
}

func newClient(cfg *Config) (*lorenzgnn.Client, error) {
	if storeOverride != "" {
		cfg.Store = storeOverride
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}
	return lorenzgnn.New(lorenzgnn.Options{
		StoreKind:    cfg.Store,
		DBPath:       cfg.DBPath,
		ArtifactsDir: cfg.ArtifactsDir,
		ExportsDir:   cfg.ExportsDir,
		Logger:       slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})
}
