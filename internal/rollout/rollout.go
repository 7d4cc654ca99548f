// Package rollout implements autoregressive multi-step prediction: each
// step's output becomes part of the next step's input window, with a windowed
// MSE loss accumulated across the horizon.
package rollout

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/graph"
	"github.com/miamirabelli/lorenzGNN/internal/model"
)

var (
	ErrInvalidWindow  = errors.New("invalid rollout window")
	ErrShapeMismatch  = errors.New("prediction and target shapes differ")
	ErrInvalidHorizon = errors.New("rollout horizon must be positive")
)

// Loss rolls the model out for nSteps steps and returns the average per-step
// MSE over all node features, with the per-step predictions in rollout order.
// The target window must contain exactly nSteps snapshots. The loss stays on
// the autodiff tape; callers that only need the scalar read Data and never
// call Backward.
//
// A nil rng disables stochastic layers, which is the evaluation path.
func Loss(m model.GraphModel, params model.Params, input, target graph.Window, nSteps int, rng *rand.Rand) (*ad.Value, []graph.Snapshot, error) {
	if err := validate(input, target, nSteps); err != nil {
		return nil, nil, err
	}

	current := input
	preds := make([]graph.Snapshot, 0, len(target))
	stepLosses := make([]*ad.Value, 0, len(target))

	for i := range target {
		pred, err := m.Apply(params, current, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("rollout step %d: %w", i, err)
		}
		if pred.NumNodes() != target[i].NumNodes() || pred.FeatureDim() != target[i].FeatureDim() {
			return nil, nil, fmt.Errorf("%w: step %d predicted %dx%d, target %dx%d",
				ErrShapeMismatch, i, pred.NumNodes(), pred.FeatureDim(), target[i].NumNodes(), target[i].FeatureDim())
		}

		// the slide is what makes this autoregressive: step i+1 consumes
		// step i's own output, never ground truth
		current = current.Shift(pred)

		stepLosses = append(stepLosses, mse(pred, target[i]))
		preds = append(preds, pred)
	}

	return ad.Mean(stepLosses), preds, nil
}

// Run is the inference-only variant: no targets, no loss, just nSteps of
// autoregressive prediction.
func Run(m model.GraphModel, params model.Params, input graph.Window, nSteps int, rng *rand.Rand) ([]graph.Snapshot, error) {
	if err := validate(input, nil, nSteps); err != nil {
		return nil, err
	}

	current := input
	preds := make([]graph.Snapshot, 0, nSteps)
	for i := 0; i < nSteps; i++ {
		pred, err := m.Apply(params, current, rng)
		if err != nil {
			return nil, fmt.Errorf("rollout step %d: %w", i, err)
		}
		current = current.Shift(pred)
		preds = append(preds, pred)
	}
	return preds, nil
}

// mse is the mean of squared elementwise differences over the node feature
// tensor. Target features enter the tape as constants; only the prediction
// side carries gradients.
func mse(pred, target graph.Snapshot) *ad.Value {
	terms := make([]*ad.Value, 0, pred.NumNodes()*pred.FeatureDim())
	for n, row := range pred.Nodes {
		for f, v := range row {
			d := ad.Shift(v, -target.Nodes[n][f].Data)
			terms = append(terms, ad.Square(d))
		}
	}
	return ad.Mean(terms)
}

// validate rejects malformed inputs before any computation: no partial loss
// accumulation ever happens on bad input. target may be nil for the
// inference-only variant.
func validate(input, target graph.Window, nSteps int) error {
	if nSteps <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHorizon, nSteps)
	}
	if len(input) == 0 {
		return fmt.Errorf("%w: empty input window", ErrInvalidWindow)
	}
	if !input.Consistent() {
		return fmt.Errorf("%w: input snapshots disagree on topology or feature dim", ErrInvalidWindow)
	}
	if target == nil {
		return nil
	}
	if len(target) != nSteps {
		return fmt.Errorf("%w: target window has %d snapshots, horizon is %d", ErrInvalidWindow, len(target), nSteps)
	}
	if !target.Consistent() {
		return fmt.Errorf("%w: target snapshots disagree on topology or feature dim", ErrInvalidWindow)
	}
	if !graph.SameTopology(input[0], target[0]) {
		return fmt.Errorf("%w: input and target topologies differ", ErrInvalidWindow)
	}
	return nil
}
