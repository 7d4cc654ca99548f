package optim

import (
	"errors"
	"fmt"

	"github.com/miamirabelli/lorenzGNN/internal/model"
)

var (
	ErrUnknownOptimizer = errors.New("unsupported optimizer")
	ErrGradMismatch     = errors.New("gradient shape does not match parameters")
)

// Grads holds detached per-parameter gradients, keyed like model.Params.
type Grads map[string][][]float64

// State is an optimizer's serializable running state. Moment maps are keyed
// like the parameters; SGD uses M as velocity and leaves V nil.
type State struct {
	Step int                    `json:"step"`
	M    map[string][][]float64 `json:"m,omitempty"`
	V    map[string][][]float64 `json:"v,omitempty"`
}

// Optimizer turns (state, gradients, params) into fresh params and fresh
// state. Implementations never write through the old parameter leaves.
type Optimizer interface {
	Name() string
	Init(params model.Params) State
	ApplyGradients(st State, grads Grads, params model.Params) (model.Params, State, error)
}

// Config selects and parameterizes an optimizer.
type Config struct {
	Kind         string
	LearningRate float64
	Momentum     float64 // sgd
	Beta1        float64 // adam
	Beta2        float64 // adam
	Eps          float64 // adam
}

// DefaultConfig is Adam with the usual coefficients.
func DefaultConfig() Config {
	return Config{
		Kind:         KindAdam,
		LearningRate: 1e-3,
		Momentum:     0.9,
		Beta1:        0.9,
		Beta2:        0.999,
		Eps:          1e-8,
	}
}

const (
	KindAdam = "adam"
	KindSGD  = "sgd"
)

// New builds the optimizer named by cfg.Kind.
func New(cfg Config) (Optimizer, error) {
	if cfg.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %f", cfg.LearningRate)
	}
	switch cfg.Kind {
	case KindAdam:
		return &Adam{cfg: cfg}, nil
	case KindSGD:
		return &SGD{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownOptimizer, cfg.Kind)
	}
}

// Gradients detaches the accumulated adjoints from the parameter leaves.
// Called after Backward on the rollout loss.
func Gradients(params model.Params) Grads {
	out := make(Grads, len(params))
	for name, mat := range params {
		rows := make([][]float64, len(mat))
		for i, row := range mat {
			rows[i] = make([]float64, len(row))
			for j, v := range row {
				rows[i][j] = v.Grad
			}
		}
		out[name] = rows
	}
	return out
}

func zeroMoments(params model.Params) map[string][][]float64 {
	m := make(map[string][][]float64, len(params))
	for name, mat := range params {
		rows := make([][]float64, len(mat))
		for i, row := range mat {
			rows[i] = make([]float64, len(row))
		}
		m[name] = rows
	}
	return m
}

func checkShapes(grads Grads, params model.Params) error {
	for name, mat := range params {
		g, ok := grads[name]
		if !ok || len(g) != len(mat) {
			return fmt.Errorf("%w: %s", ErrGradMismatch, name)
		}
		for i := range mat {
			if len(g[i]) != len(mat[i]) {
				return fmt.Errorf("%w: %s row %d", ErrGradMismatch, name, i)
			}
		}
	}
	return nil
}
