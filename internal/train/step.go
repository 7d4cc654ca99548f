package train

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/dataset"
	"github.com/miamirabelli/lorenzGNN/internal/graph"
	"github.com/miamirabelli/lorenzGNN/internal/optim"
	"github.com/miamirabelli/lorenzGNN/internal/rollout"
	"github.com/miamirabelli/lorenzGNN/internal/stats"
)

// Step runs one optimization step: rollout loss, backward pass, gradient
// application. It returns the successor state, the step's loss as a metrics
// sample, and the predicted snapshots. Gradients flow only into parameter
// leaves; input and target features stay untouched.
func Step(st State, sample dataset.Sample, rng *rand.Rand) (State, stats.Average, []graph.Snapshot, error) {
	loss, preds, err := rollout.Loss(st.Model, st.Params, sample.Input, sample.Target, len(sample.Target), rng)
	if err != nil {
		return State{}, stats.Average{}, nil, fmt.Errorf("rollout loss: %w", err)
	}
	if math.IsNaN(loss.Data) || math.IsInf(loss.Data, 0) {
		return State{}, stats.Average{}, nil, fmt.Errorf("loss diverged at step %d: %v", st.Step, loss.Data)
	}

	ad.Backward(loss)
	grads := optim.Gradients(st.Params)

	params, optState, err := st.Opt.ApplyGradients(st.OptState, grads, st.Params)
	if err != nil {
		return State{}, stats.Average{}, nil, fmt.Errorf("apply gradients: %w", err)
	}

	return st.withUpdate(params, optState), stats.Sample(loss.Data), preds, nil
}
