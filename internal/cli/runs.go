package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/miamirabelli/lorenzGNN/pkg/lorenzgnn"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs, newest first",
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

		ctx := cmd.Context()
		if err := client.Init(ctx); err != nil {
			return err
		}

		items, err := client.Runs(ctx, lorenzgnn.RunsRequest{Limit: runsLimit})
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tMODEL\tOPTIMIZER\tEPOCHS\tTRAIN LOSS\tVAL LOSS\tCREATED")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.6f\t%.6f\t%s\n",
				item.RunID, item.Model, item.Optimizer, item.Epochs,
				item.FinalTrainLoss, item.FinalValLoss, item.CreatedAtUTC)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
}
