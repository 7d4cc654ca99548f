package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/graph"
)

// MLPGraphNetwork predicts the next snapshot with message passing over the
// fixed topology: node features across the window are encoded into a latent
// vector, edge messages computed from sender/receiver latents are summed at
// each receiver, node latents are updated residually, and a decoder maps the
// final latents back to feature space.
type MLPGraphNetwork struct {
	cfg Config
}

func (m *MLPGraphNetwork) Name() string { return KindMLPGraphNetwork }

func (m *MLPGraphNetwork) Init(rng *rand.Rand, sample graph.Window) (Params, error) {
	if len(sample) == 0 || sample[0].NumNodes() == 0 {
		return nil, ErrEmptyWindow
	}
	featureDim := sample[0].FeatureDim()
	inDim := len(sample) * featureDim
	latent := m.cfg.LatentSize

	p := Params{
		"enc.w":    initMatrix(rng, latent, inDim, 1/math.Sqrt(float64(inDim))),
		"enc.b":    zeroRow(latent),
		"edge.w":   initMatrix(rng, latent, 2*latent, 1/math.Sqrt(float64(2*latent))),
		"edge.b":   zeroRow(latent),
		"update.w": initMatrix(rng, latent, 2*latent, 1/math.Sqrt(float64(2*latent))),
		"update.b": zeroRow(latent),
		"dec.w":    initMatrix(rng, featureDim, latent, 1/math.Sqrt(float64(latent))),
		"dec.b":    zeroRow(featureDim),
	}
	if m.cfg.LayerNorm {
		p["ln.gain"] = onesRow(latent)
		p["ln.bias"] = zeroRow(latent)
	}
	return p, nil
}

func (m *MLPGraphNetwork) Apply(params Params, window graph.Window, rng *rand.Rand) (graph.Snapshot, error) {
	if len(window) == 0 {
		return graph.Snapshot{}, ErrEmptyWindow
	}
	names := []string{"enc.w", "enc.b", "edge.w", "edge.b", "update.w", "update.b", "dec.w", "dec.b"}
	if m.cfg.LayerNorm {
		names = append(names, "ln.gain", "ln.bias")
	}
	mats := make(map[string][][]*ad.Value, len(names))
	for _, name := range names {
		mat, err := getParam(params, name)
		if err != nil {
			return graph.Snapshot{}, err
		}
		mats[name] = mat
	}

	last := window[len(window)-1]
	numNodes := last.NumNodes()

	// encode each node's windowed features into latent space
	latents := make([][]*ad.Value, numNodes)
	for n := 0; n < numNodes; n++ {
		inputs := make([][]*ad.Value, len(window))
		for t, snap := range window {
			inputs[t] = snap.Nodes[n]
		}
		h, err := dense(mats["enc.w"], mats["enc.b"], concat(inputs...))
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("encode node %d: %w", n, err)
		}
		for i, v := range h {
			h[i] = ad.Tanh(v)
		}
		latents[n] = h
	}

	for step := 0; step < m.cfg.MessagePassingSteps; step++ {
		// per-edge messages, summed at receivers
		agg := make([][][]*ad.Value, numNodes)
		for e := range last.Senders {
			msg, err := dense(mats["edge.w"], mats["edge.b"], concat(latents[last.Senders[e]], latents[last.Receivers[e]]))
			if err != nil {
				return graph.Snapshot{}, fmt.Errorf("edge %d message: %w", e, err)
			}
			for i, v := range msg {
				msg[i] = ad.Tanh(v)
			}
			agg[last.Receivers[e]] = append(agg[last.Receivers[e]], msg)
		}

		next := make([][]*ad.Value, numNodes)
		for n := 0; n < numNodes; n++ {
			summed := make([]*ad.Value, m.cfg.LatentSize)
			for i := range summed {
				terms := make([]*ad.Value, 0, len(agg[n]))
				for _, msg := range agg[n] {
					terms = append(terms, msg[i])
				}
				summed[i] = ad.Sum(terms)
			}
			update, err := dense(mats["update.w"], mats["update.b"], concat(latents[n], summed))
			if err != nil {
				return graph.Snapshot{}, fmt.Errorf("update node %d: %w", n, err)
			}
			h := make([]*ad.Value, len(update))
			for i, v := range update {
				// residual update keeps deep message passing stable
				h[i] = ad.Add(latents[n][i], ad.Tanh(v))
			}
			if m.cfg.LayerNorm {
				h = layerNorm(h, mats["ln.gain"], mats["ln.bias"])
			}
			next[n] = dropout(h, m.cfg.DropoutRate, rng)
		}
		latents = next
	}

	nodes := make([][]*ad.Value, numNodes)
	for n := 0; n < numNodes; n++ {
		out, err := dense(mats["dec.w"], mats["dec.b"], latents[n])
		if err != nil {
			return graph.Snapshot{}, fmt.Errorf("decode node %d: %w", n, err)
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
