package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full YAML-configurable surface of lorenzctl. Flags override
// whatever the file provides.
type Config struct {
	Store        string `yaml:"store"`
	DBPath       string `yaml:"db_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`
	ExportsDir   string `yaml:"exports_dir"`

	Model               string  `yaml:"model"`
	LatentSize          int     `yaml:"latent_size"`
	DropoutRate         float64 `yaml:"dropout_rate"`
	SkipConnections     bool    `yaml:"skip_connections"`
	LayerNorm           bool    `yaml:"layer_norm"`
	MessagePassingSteps int     `yaml:"message_passing_steps"`

	Optimizer    string  `yaml:"optimizer"`
	LearningRate float64 `yaml:"learning_rate"`
	Momentum     float64 `yaml:"momentum"`

	Epochs                int   `yaml:"epochs"`
	EvalEveryEpochs       int   `yaml:"eval_every_epochs"`
	CheckpointEveryEpochs int   `yaml:"checkpoint_every_epochs"`
	Seed                  int64 `yaml:"seed"`

	NumNodes        int  `yaml:"num_nodes"`
	TrajectorySteps int  `yaml:"trajectory_steps"`
	InputSteps      int  `yaml:"input_steps"`
	OutputSteps     int  `yaml:"output_steps"`
	Normalize       bool `yaml:"normalize"`
}

func DefaultConfig() *Config {
	return &Config{
		ArtifactsDir:          "artifacts",
		ExportsDir:            "exports",
		Model:                 "MLPBlock",
		LatentSize:            16,
		DropoutRate:           0.1,
		SkipConnections:       true,
		LayerNorm:             true,
		MessagePassingSteps:   1,
		Optimizer:             "adam",
		LearningRate:          1e-3,
		Momentum:              0.9,
		Epochs:                30,
		EvalEveryEpochs:       5,
		CheckpointEveryEpochs: 5,
		Seed:                  42,
		NumNodes:              36,
		TrajectorySteps:       600,
		InputSteps:            2,
		OutputSteps:           3,
		Normalize:             true,
	}
}

// Load reads configuration from path, or from lorenzgnn.yaml in the working
// directory when path is empty. A missing default file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if path == "" {
		path = "lorenzgnn.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}
