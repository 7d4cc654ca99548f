package model

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/graph"
)

var (
	ErrUnknownModel = errors.New("unsupported model")
	ErrEmptyWindow  = errors.New("model requires a non-empty input window")
	ErrMissingParam = errors.New("missing parameter")
)

// GraphModel is the capability the rollout engine consumes: a pure function
// from (params, input window) to the predicted next snapshot on the same
// topology. A nil rng selects the deterministic variant (no dropout).
type GraphModel interface {
	Name() string
	Apply(params Params, window graph.Window, rng *rand.Rand) (graph.Snapshot, error)
	Init(rng *rand.Rand, sample graph.Window) (Params, error)
}

// Config selects and parameterizes a model variant.
type Config struct {
	Kind                string
	LatentSize          int
	DropoutRate         float64
	SkipConnections     bool
	LayerNorm           bool
	MessagePassingSteps int
}

// DefaultConfig mirrors the usual MLPBlock hyperparameters.
func DefaultConfig() Config {
	return Config{
		Kind:                KindMLPBlock,
		LatentSize:          16,
		DropoutRate:         0.1,
		SkipConnections:     true,
		LayerNorm:           true,
		MessagePassingSteps: 1,
	}
}

const (
	KindMLPBlock        = "MLPBlock"
	KindMLPGraphNetwork = "MLPGraphNetwork"
)

// New builds the model variant named by cfg.Kind.
func New(cfg Config) (GraphModel, error) {
	if cfg.LatentSize < 1 {
		return nil, fmt.Errorf("latent size must be positive, got %d", cfg.LatentSize)
	}
	if cfg.DropoutRate < 0 || cfg.DropoutRate >= 1 {
		return nil, fmt.Errorf("dropout rate must be in [0, 1), got %f", cfg.DropoutRate)
	}
	switch cfg.Kind {
	case KindMLPBlock:
		return &MLPBlock{cfg: cfg}, nil
	case KindMLPGraphNetwork:
		if cfg.MessagePassingSteps < 1 {
			return nil, fmt.Errorf("message passing steps must be positive, got %d", cfg.MessagePassingSteps)
		}
		return &MLPGraphNetwork{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, cfg.Kind)
	}
}

func getParam(p Params, name string) ([][]*ad.Value, error) {
	mat, ok := p[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, name)
	}
	return mat, nil
}
