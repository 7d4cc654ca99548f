package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/graph"
)

var (
	ErrBadConfig      = errors.New("invalid dataset config")
	ErrNotEnoughSteps = errors.New("trajectory too short for requested windows")
)

// Config controls trajectory generation and windowing.
type Config struct {
	NumNodes      int     // slow variables K (graph nodes)
	FastPerNode   int     // fast variables J per slow variable
	Forcing       float64 // F
	Coupling      float64 // H
	SpatialScale  float64 // B
	TemporalScale float64 // C

	Dt     float64
	Steps  int // kept integration steps after spin-up
	SpinUp int
	Seed   int64

	InputSteps  int // snapshots per input window
	OutputSteps int // snapshots per target window (rollout horizon)
	Stride      int // offset between consecutive sample windows

	TrainFraction float64
	ValFraction   float64 // remainder goes to test

	Normalize bool
}

// DefaultConfig mirrors the usual two-layer Lorenz-96 setup: 36 nodes, 10
// fast variables each, F=8, and short input windows.
func DefaultConfig() Config {
	return Config{
		NumNodes:      36,
		FastPerNode:   10,
		Forcing:       8,
		Coupling:      1,
		SpatialScale:  10,
		TemporalScale: 10,
		Dt:            0.005,
		Steps:         600,
		SpinUp:        200,
		Seed:          42,
		InputSteps:    2,
		OutputSteps:   3,
		Stride:        1,
		TrainFraction: 0.7,
		ValFraction:   0.15,
		Normalize:     true,
	}
}

// Sample pairs an input window with its rollout target window. The target
// starts at the timestep immediately after the input ends.
type Sample struct {
	Input  graph.Window
	Target graph.Window
}

// Dataset holds windowed samples per split, all sharing one ring topology.
type Dataset struct {
	Splits map[string][]Sample

	Senders   []int
	Receivers []int

	// FeatureMean/FeatureStd are the train-split statistics applied when
	// Normalize is set; identity otherwise.
	FeatureMean []float64
	FeatureStd  []float64
}

// SplitNames lists the split keys every generated dataset carries.
func SplitNames() []string {
	return []string{"train", "validation", "test"}
}

func (c Config) validate() error {
	switch {
	case c.NumNodes < 4:
		return fmt.Errorf("%w: need at least 4 nodes, got %d", ErrBadConfig, c.NumNodes)
	case c.FastPerNode < 1:
		return fmt.Errorf("%w: fast per node must be positive", ErrBadConfig)
	case c.Dt <= 0:
		return fmt.Errorf("%w: dt must be positive", ErrBadConfig)
	case c.InputSteps < 1 || c.OutputSteps < 1:
		return fmt.Errorf("%w: window lengths must be positive", ErrBadConfig)
	case c.Stride < 1:
		return fmt.Errorf("%w: stride must be positive", ErrBadConfig)
	case c.TrainFraction <= 0 || c.ValFraction < 0 || c.TrainFraction+c.ValFraction >= 1:
		return fmt.Errorf("%w: split fractions must satisfy 0 < train, 0 <= val, train+val < 1", ErrBadConfig)
	}
	return nil
}

// Generate integrates a trajectory and windows it into train/validation/test
// samples. Splitting happens on the raw timeline before windowing, so no
// sample straddles a split boundary and no test data leaks into training.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	params := lorenz96Params{
		K: cfg.NumNodes,
		J: cfg.FastPerNode,
		F: cfg.Forcing,
		H: cfg.Coupling,
		B: cfg.SpatialScale,
		C: cfg.TemporalScale,
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	frames := simulate(params, cfg.Dt, cfg.Steps, cfg.SpinUp, rng)

	window := cfg.InputSteps + cfg.OutputSteps
	trainEnd := int(float64(len(frames)) * cfg.TrainFraction)
	valEnd := trainEnd + int(float64(len(frames))*cfg.ValFraction)
	if trainEnd < window || valEnd-trainEnd < window || len(frames)-valEnd < window {
		return nil, fmt.Errorf("%w: %d steps cannot cover %d-step windows in all splits", ErrNotEnoughSteps, len(frames), window)
	}

	mean, std := featureStats(frames[:trainEnd])
	if !cfg.Normalize {
		for i := range mean {
			mean[i], std[i] = 0, 1
		}
	}
	normalized := normalizeFrames(frames, mean, std)

	senders, receivers := graph.RingTopology(cfg.NumNodes, []int{-2, -1, 1})

	ds := &Dataset{
		Splits:      make(map[string][]Sample, 3),
		Senders:     senders,
		Receivers:   receivers,
		FeatureMean: mean,
		FeatureStd:  std,
	}

	bounds := map[string][2]int{
		"train":      {0, trainEnd},
		"validation": {trainEnd, valEnd},
		"test":       {valEnd, len(frames)},
	}
	for _, split := range SplitNames() {
		b := bounds[split]
		samples, err := windowFrames(normalized[b[0]:b[1]], cfg, senders, receivers)
		if err != nil {
			return nil, fmt.Errorf("window %s split: %w", split, err)
		}
		ds.Splits[split] = samples
	}
	return ds, nil
}

func windowFrames(frames [][][]float64, cfg Config, senders, receivers []int) ([]Sample, error) {
	window := cfg.InputSteps + cfg.OutputSteps
	var samples []Sample
	for start := 0; start+window <= len(frames); start += cfg.Stride {
		input := make(graph.Window, 0, cfg.InputSteps)
		for t := start; t < start+cfg.InputSteps; t++ {
			snap, err := graph.NewSnapshot(frames[t], senders, receivers)
			if err != nil {
				return nil, err
			}
			input = append(input, snap)
		}
		target := make(graph.Window, 0, cfg.OutputSteps)
		for t := start + cfg.InputSteps; t < start+window; t++ {
			snap, err := graph.NewSnapshot(frames[t], senders, receivers)
			if err != nil {
				return nil, err
			}
			target = append(target, snap)
		}
		samples = append(samples, Sample{Input: input, Target: target})
	}
	return samples, nil
}

func featureStats(frames [][][]float64) (mean, std []float64) {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return nil, nil
	}
	dim := len(frames[0][0])
	mean = make([]float64, dim)
	std = make([]float64, dim)
	n := 0
	for _, frame := range frames {
		for _, row := range frame {
			for j, x := range row {
				mean[j] += x
			}
			n++
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for _, frame := range frames {
		for _, row := range frame {
			for j, x := range row {
				d := x - mean[j]
				std[j] += d * d
			}
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(n))
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return mean, std
}

func normalizeFrames(frames [][][]float64, mean, std []float64) [][][]float64 {
	out := make([][][]float64, len(frames))
	for t, frame := range frames {
		rows := make([][]float64, len(frame))
		for i, row := range frame {
			scaled := make([]float64, len(row))
			for j, x := range row {
				scaled[j] = (x - mean[j]) / std[j]
			}
			rows[i] = scaled
		}
		out[t] = rows
	}
	return out
}
