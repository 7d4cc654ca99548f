package train

import (
	"context"
	"errors"
	"fmt"

	"github.com/miamirabelli/lorenzGNN/internal/dataset"
	"github.com/miamirabelli/lorenzGNN/internal/rollout"
	"github.com/miamirabelli/lorenzGNN/internal/stats"
)

var ErrUnknownSplit = errors.New("dataset split does not exist")

// EvaluateModel measures mean rollout loss per split without touching the
// training state. Evaluation is deterministic: no dropout, no gradient
// application. A split that exists but holds no samples yields an empty
// accumulator, which is not the same thing as a loss of zero.
func EvaluateModel(ctx context.Context, st State, ds *dataset.Dataset, splits []string) (map[string]stats.Average, error) {
	out := make(map[string]stats.Average, len(splits))
	for _, split := range splits {
		samples, ok := ds.Splits[split]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSplit, split)
		}

		acc := stats.Average{}
		for _, sample := range samples {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			loss, _, err := rollout.Loss(st.Model, st.Params, sample.Input, sample.Target, len(sample.Target), nil)
			if err != nil {
				return nil, fmt.Errorf("evaluate %s split: %w", split, err)
			}
			acc = acc.Merge(stats.Sample(loss.Data))
		}
		out[split] = acc
	}
	return out, nil
}
