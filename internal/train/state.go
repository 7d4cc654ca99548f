package train

import (
	"github.com/miamirabelli/lorenzGNN/internal/model"
	"github.com/miamirabelli/lorenzGNN/internal/optim"
)

// State carries everything one optimization step consumes and produces.
// Params and OptState are replaced wholesale on every step; a State value
// held before a step is still valid afterwards.
type State struct {
	Model    model.GraphModel
	Params   model.Params
	Opt      optim.Optimizer
	OptState optim.State
	Step     int64
}

// NewState initializes parameters from a sample window and seeds the
// optimizer state for them.
func NewState(m model.GraphModel, opt optim.Optimizer, params model.Params) State {
	return State{
		Model:    m,
		Params:   params,
		Opt:      opt,
		OptState: opt.Init(params),
	}
}

func (s State) withUpdate(params model.Params, optState optim.State) State {
	s.Params = params
	s.OptState = optState
	s.Step++
	return s
}
