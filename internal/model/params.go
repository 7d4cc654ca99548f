package model

import (
	"math/rand"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
)

// Params is the model's learnable state: named weight matrices on the
// autodiff tape. Biases are stored as single-row matrices. Params values are
// treated as immutable by everything except the optimizer, which builds a
// fresh Params rather than writing through the old leaves.
type Params map[string][][]*ad.Value

// Raw detaches the parameter data for persistence.
func (p Params) Raw() map[string][][]float64 {
	out := make(map[string][][]float64, len(p))
	for name, mat := range p {
		rows := make([][]float64, len(mat))
		for i, row := range mat {
			rows[i] = make([]float64, len(row))
			for j, v := range row {
				rows[i][j] = v.Data
			}
		}
		out[name] = rows
	}
	return out
}

// FromRaw lifts persisted parameter data back onto a fresh tape.
func FromRaw(raw map[string][][]float64) Params {
	p := make(Params, len(raw))
	for name, mat := range raw {
		rows := make([][]*ad.Value, len(mat))
		for i, row := range mat {
			rows[i] = make([]*ad.Value, len(row))
			for j, x := range row {
				rows[i][j] = ad.V(x)
			}
		}
		p[name] = rows
	}
	return p
}

// Count returns the number of scalar parameters.
func (p Params) Count() int {
	n := 0
	for _, mat := range p {
		for _, row := range mat {
			n += len(row)
		}
	}
	return n
}

// Names returns the parameter names in deterministic order.
func (p Params) Names() []string {
	names := maps.Keys(p)
	slices.Sort(names)
	return names
}

// initMatrix draws a rows x cols weight matrix with scaled Gaussian entries.
func initMatrix(rng *rand.Rand, rows, cols int, scale float64) [][]*ad.Value {
	mat := make([][]*ad.Value, rows)
	for i := range mat {
		mat[i] = make([]*ad.Value, cols)
		for j := range mat[i] {
			mat[i][j] = ad.V(rng.NormFloat64() * scale)
		}
	}
	return mat
}

// zeroRow builds a 1 x cols bias matrix.
func zeroRow(cols int) [][]*ad.Value {
	row := make([]*ad.Value, cols)
	for j := range row {
		row[j] = ad.V(0)
	}
	return [][]*ad.Value{row}
}

// onesRow builds a 1 x cols matrix of ones (layer norm gain).
func onesRow(cols int) [][]*ad.Value {
	row := make([]*ad.Value, cols)
	for j := range row {
		row[j] = ad.V(1)
	}
	return [][]*ad.Value{row}
}
