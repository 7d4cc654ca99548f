package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NumNodes = 8
	cfg.FastPerNode = 4
	cfg.Steps = 120
	cfg.SpinUp = 50
	return cfg
}

func TestGenerateShapes(t *testing.T) {
	cfg := smallConfig()
	ds, err := Generate(cfg)
	require.NoError(t, err)

	for _, split := range SplitNames() {
		samples := ds.Splits[split]
		require.NotEmpty(t, samples, "split %s", split)
		for _, s := range samples {
			require.Len(t, s.Input, cfg.InputSteps)
			require.Len(t, s.Target, cfg.OutputSteps)
			for _, snap := range s.Input {
				require.Equal(t, cfg.NumNodes, snap.NumNodes())
				require.Equal(t, 2, snap.FeatureDim())
			}
		}
	}
	// three incoming edges per node on the ring
	require.Len(t, ds.Senders, cfg.NumNodes*3)
}

func TestWindowPairingIsContiguous(t *testing.T) {
	cfg := smallConfig()
	cfg.Stride = 1
	ds, err := Generate(cfg)
	require.NoError(t, err)

	samples := ds.Splits["train"]
	require.Greater(t, len(samples), 1)

	// with stride 1, the next sample's input starts one step later, so its
	// first input snapshot equals this sample's second input snapshot
	a := samples[0].Input[1].Features()
	b := samples[1].Input[0].Features()
	require.Equal(t, a, b)

	// the target follows the input with no gap: sample 1's input end
	// overlaps sample 0's first target
	end := samples[0].Target[0].Features()
	next := samples[1].Input[cfg.InputSteps-1].Features()
	require.Equal(t, end, next)
}

func TestGenerateDeterministicPerSeed(t *testing.T) {
	cfg := smallConfig()
	a, err := Generate(cfg)
	require.NoError(t, err)
	b, err := Generate(cfg)
	require.NoError(t, err)
	require.Equal(t,
		a.Splits["train"][0].Input[0].Features(),
		b.Splits["train"][0].Input[0].Features())

	cfg.Seed = 7
	c, err := Generate(cfg)
	require.NoError(t, err)
	require.NotEqual(t,
		a.Splits["train"][0].Input[0].Features(),
		c.Splits["train"][0].Input[0].Features())
}

func TestNormalizationUsesTrainStats(t *testing.T) {
	cfg := smallConfig()
	cfg.Normalize = true
	ds, err := Generate(cfg)
	require.NoError(t, err)
	require.Len(t, ds.FeatureMean, 2)
	require.Len(t, ds.FeatureStd, 2)
	for j, std := range ds.FeatureStd {
		require.Greater(t, std, 0.0, "feature %d", j)
	}

	// normalized train features should be roughly centered
	var sum float64
	var n int
	for _, s := range ds.Splits["train"] {
		for _, row := range s.Input[0].Features() {
			sum += row[0]
			n++
		}
	}
	require.Less(t, math.Abs(sum/float64(n)), 1.0)
}

func TestGenerateRejectsBadConfig(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.NumNodes = 2 },
		func(c *Config) { c.InputSteps = 0 },
		func(c *Config) { c.OutputSteps = 0 },
		func(c *Config) { c.Stride = 0 },
		func(c *Config) { c.Dt = 0 },
		func(c *Config) { c.TrainFraction = 0.9; c.ValFraction = 0.2 },
	}
	for i, mutate := range cases {
		cfg := smallConfig()
		mutate(&cfg)
		_, err := Generate(cfg)
		require.ErrorIs(t, err, ErrBadConfig, "case %d", i)
	}

	cfg := smallConfig()
	cfg.Steps = 20
	_, err := Generate(cfg)
	require.ErrorIs(t, err, ErrNotEnoughSteps)
}
