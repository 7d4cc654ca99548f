package optim

import (
	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/model"
)

// SGD applies momentum-accelerated gradient descent.
type SGD struct {
	cfg Config
}

func (s *SGD) Name() string { return KindSGD }

func (s *SGD) Init(params model.Params) State {
	return State{M: zeroMoments(params)}
}

func (s *SGD) ApplyGradients(st State, grads Grads, params model.Params) (model.Params, State, error) {
	if err := checkShapes(grads, params); err != nil {
		return nil, State{}, err
	}

	next := State{
		Step: st.Step + 1,
		M:    make(map[string][][]float64, len(params)),
	}
	updated := make(model.Params, len(params))
	for name, mat := range params {
		vel := make([][]float64, len(mat))
		fresh := make([][]*ad.Value, len(mat))
		for i, row := range mat {
			vel[i] = make([]float64, len(row))
			fresh[i] = make([]*ad.Value, len(row))
			for j, p := range row {
				vel[i][j] = s.cfg.Momentum*st.M[name][i][j] + grads[name][i][j]
				fresh[i][j] = ad.V(p.Data - s.cfg.LearningRate*vel[i][j])
			}
		}
		next.M[name] = vel
		updated[name] = fresh
	}
	return updated, next, nil
}
