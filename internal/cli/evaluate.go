package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/miamirabelli/lorenzGNN/pkg/lorenzgnn"
)

var (
	evalRunID  string
	evalLatest bool
	evalSplits []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a trained run's latest checkpoint",
	Long: `Reloads the latest checkpoint of a run, regenerates the dataset the
run was trained on, and reports deterministic mean rollout loss per split.`,
	Example: `  lorenzctl evaluate --run-id demo
  lorenzctl evaluate --latest --splits test`,
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

		summary, err := client.Evaluate(ctx, lorenzgnn.EvaluateRequest{
			RunID:  evalRunID,
			Latest: evalLatest,
			Splits: evalSplits,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run: %s (epoch %d)\n", summary.RunID, summary.Epoch)

		splits := make([]string, 0, len(summary.Losses))
		for split := range summary.Losses {
			splits = append(splits, split)
		}
		sort.Strings(splits)
		for _, split := range splits {
			fmt.Fprintf(out, "%s loss: %.6f\n", split, summary.Losses[split])
		}
		for _, split := range summary.EmptySplits {
			fmt.Fprintf(out, "%s: no samples\n", split)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalRunID, "run-id", "", "run to evaluate")
	evaluateCmd.Flags().BoolVar(&evalLatest, "latest", false, "evaluate the most recent run")
	evaluateCmd.Flags().StringSliceVar(&evalSplits, "splits", nil, "splits to evaluate (default train,validation,test)")
}
