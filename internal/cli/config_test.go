package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingDefaultFileReturnsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorenzgnn.yaml")
	content := []byte(`
model: MLPGraphNetwork
epochs: 12
learning_rate: 0.01
layer_norm: false
num_nodes: 12
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MLPGraphNetwork", cfg.Model)
	assert.Equal(t, 12, cfg.Epochs)
	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.False(t, cfg.LayerNorm)
	assert.Equal(t, 12, cfg.NumNodes)

	// Untouched keys keep their defaults.
	assert.Equal(t, 16, cfg.LatentSize)
	assert.True(t, cfg.SkipConnections)
	assert.Equal(t, "adam", cfg.Optimizer)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: [not an int"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
