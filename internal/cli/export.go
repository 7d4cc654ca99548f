package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/miamirabelli/lorenzGNN/pkg/lorenzgnn"
)

var (
	exportRunID  string
	exportLatest bool
	exportOutDir string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy a run's artifacts to the exports directory",
	Example: `  lorenzctl export --run-id demo
  lorenzctl export --latest --out ./paper-figures`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := Load(cfgFile)
		if err != nil {
			return err
		}

		client, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		summary, err := client.Export(cmd.Context(), lorenzgnn.ExportRequest{
			RunID:  exportRunID,
			Latest: exportLatest,
			OutDir: exportOutDir,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", summary.RunID, summary.Directory)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportRunID, "run-id", "", "run to export")
	exportCmd.Flags().BoolVar(&exportLatest, "latest", false, "export the most recent run")
	exportCmd.Flags().StringVar(&exportOutDir, "out", "", "destination directory (default exports dir)")
}
