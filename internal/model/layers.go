package model

import (
	"fmt"
	"math/rand"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
)

const layerNormEps = 1e-6

// dense computes W*x + b for W of shape (out, in) and bias row b.
func dense(w, b [][]*ad.Value, x []*ad.Value) ([]*ad.Value, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("dense: empty weight matrix")
	}
	if len(w[0]) != len(x) {
		return nil, fmt.Errorf("dense: weight expects %d inputs, got %d", len(w[0]), len(x))
	}
	out := make([]*ad.Value, len(w))
	for i, row := range w {
		terms := make([]*ad.Value, 0, len(row)+1)
		for j, wij := range row {
			terms = append(terms, ad.Mul(wij, x[j]))
		}
		terms = append(terms, b[0][i])
		out[i] = ad.Sum(terms)
	}
	return out, nil
}

// dropout zeroes units with probability rate and rescales survivors by
// 1/(1-rate). A nil rng disables it entirely, which is the deterministic
// evaluation path.
func dropout(x []*ad.Value, rate float64, rng *rand.Rand) []*ad.Value {
	if rng == nil || rate <= 0 {
		return x
	}
	keep := 1 - rate
	out := make([]*ad.Value, len(x))
	for i, v := range x {
		if rng.Float64() < rate {
			out[i] = ad.Scale(v, 0)
		} else {
			out[i] = ad.Scale(v, 1/keep)
		}
	}
	return out
}

// layerNorm normalizes x to zero mean and unit variance, then applies the
// learned gain and bias rows.
func layerNorm(x []*ad.Value, gain, bias [][]*ad.Value) []*ad.Value {
	mean := ad.Mean(x)
	centered := make([]*ad.Value, len(x))
	sq := make([]*ad.Value, len(x))
	for i, v := range x {
		centered[i] = ad.Sub(v, mean)
		sq[i] = ad.Square(centered[i])
	}
	std := ad.Sqrt(ad.Shift(ad.Mean(sq), layerNormEps))
	out := make([]*ad.Value, len(x))
	for i := range x {
		out[i] = ad.Add(ad.Mul(gain[0][i], ad.Div(centered[i], std)), bias[0][i])
	}
	return out
}

// concat flattens feature vectors into one input vector.
func concat(vecs ...[]*ad.Value) []*ad.Value {
	n := 0
	for _, v := range vecs {
		n += len(v)
	}
	out := make([]*ad.Value, 0, n)
	for _, v := range vecs {
		out = append(out, v...)
	}
	return out
}
