package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/graph"
)

// MLPBlock predicts the next snapshot with a two-layer perceptron applied
// independently to each node, consuming the node's features across the whole
// input window. Weights are shared across nodes; topology passes through
// untouched.
type MLPBlock struct {
	cfg Config
}

func (m *MLPBlock) Name() string { return KindMLPBlock }

func (m *MLPBlock) Init(rng *rand.Rand, sample graph.Window) (Params, error) {
	if len(sample) == 0 || sample[0].NumNodes() == 0 {
		return nil, ErrEmptyWindow
	}
	featureDim := sample[0].FeatureDim()
	inDim := len(sample) * featureDim
	latent := m.cfg.LatentSize

	p := Params{
		"hidden.w": initMatrix(rng, latent, inDim, 1/math.Sqrt(float64(inDim))),
		"hidden.b": zeroRow(latent),
		"out.w":    initMatrix(rng, featureDim, latent, 1/math.Sqrt(float64(latent))),
		"out.b":    zeroRow(featureDim),
	}
	if m.cfg.LayerNorm {
		p["ln.gain"] = onesRow(latent)
		p["ln.bias"] = zeroRow(latent)
	}
	return p, nil
}

func (m *MLPBlock) Apply(params Params, window graph.Window, rng *rand.Rand) (graph.Snapshot, error) {
	if len(window) == 0 {
		return graph.Snapshot{}, ErrEmptyWindow
	}
	hiddenW, err := getParam(params, "hidden.w")
	if err != nil {
		return graph.Snapshot{}, err
	}
	hiddenB, err := getParam(params, "hidden.b")
	if err != nil {
		return graph.Snapshot{}, err
	}
	outW, err := getParam(params, "out.w")
	if err != nil {
		return graph.Snapshot{}, err
	}
	outB, err := getParam(params, "out.b")
	if err != nil {
		return graph.Snapshot{}, err
	}

	last := window[len(window)-1]
	nodes := make([][]*ad.Value, last.NumNodes())
	for n := range nodes {
		inputs := make([][]*ad.Value, len(window))
		for t, snap := range window {
			inputs[t] = snap.Nodes[n]
		}
		x := concat(inputs...)

		hidden, err := dense(hiddenW, hiddenB, x)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("node %d hidden layer: %w", n, err)
		}
		for i, h := range hidden {
			hidden[i] = ad.Tanh(h)
		}
		if m.cfg.LayerNorm {
			gain, err := getParam(params, "ln.gain")
			if err != nil {
				return graph.Snapshot{}, err
			}
			bias, err := getParam(params, "ln.bias")
			if err != nil {
				return graph.Snapshot{}, err
			}
			hidden = layerNorm(hidden, gain, bias)
		}
		hidden = dropout(hidden, m.cfg.DropoutRate, rng)

		out, err := dense(outW, outB, hidden)
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("node %d output layer: %w", n, err)
		}
		if m.cfg.SkipConnections {
			for i := range out {
				out[i] = ad.Add(out[i], last.Nodes[n][i])
			}
		}
		nodes[n] = out
	}

	return graph.Snapshot{
		Nodes:     nodes,
		Senders:   last.Senders,
		Receivers: last.Receivers,
	}, nil
}
