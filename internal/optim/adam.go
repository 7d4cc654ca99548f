package optim

import (
	"math"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
	"github.com/miamirabelli/lorenzGNN/internal/model"
)

// Adam keeps bias-corrected first and second moment estimates per parameter.
type Adam struct {
	cfg Config
}

func (a *Adam) Name() string { return KindAdam }

func (a *Adam) Init(params model.Params) State {
	return State{M: zeroMoments(params), V: zeroMoments(params)}
}

func (a *Adam) ApplyGradients(st State, grads Grads, params model.Params) (model.Params, State, error) {
	if err := checkShapes(grads, params); err != nil {
		return nil, State{}, err
	}

	t := st.Step + 1
	next := State{
		Step: t,
		M:    make(map[string][][]float64, len(params)),
		V:    make(map[string][][]float64, len(params)),
	}
	corr1 := 1 - math.Pow(a.cfg.Beta1, float64(t))
	corr2 := 1 - math.Pow(a.cfg.Beta2, float64(t))

	updated := make(model.Params, len(params))
	for name, mat := range params {
		m := make([][]float64, len(mat))
		v := make([][]float64, len(mat))
		fresh := make([][]*ad.Value, len(mat))
		for i, row := range mat {
			m[i] = make([]float64, len(row))
			v[i] = make([]float64, len(row))
			fresh[i] = make([]*ad.Value, len(row))
			for j, p := range row {
				g := grads[name][i][j]
				m[i][j] = a.cfg.Beta1*st.M[name][i][j] + (1-a.cfg.Beta1)*g
				v[i][j] = a.cfg.Beta2*st.V[name][i][j] + (1-a.cfg.Beta2)*g*g
				mHat := m[i][j] / corr1
				vHat := v[i][j] / corr2
				fresh[i][j] = ad.V(p.Data - a.cfg.LearningRate*mHat/(math.Sqrt(vHat)+a.cfg.Eps))
			}
		}
		next.M[name] = m
		next.V[name] = v
		updated[name] = fresh
	}
	return updated, next, nil
}
