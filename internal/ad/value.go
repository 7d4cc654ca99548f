package ad

import "math"

// Value is one node in a reverse-mode autodiff tape. Data is the forward
// result, Grad the accumulated adjoint after Backward. Each node records its
// inputs together with the local partial derivatives at the forward point.
type Value struct {
	Data float64
	Grad float64

	children   []*Value
	localGrads []float64
}

// V wraps a constant or leaf parameter value.
func V(x float64) *Value {
	return &Value{Data: x}
}

func Add(a, b *Value) *Value {
	return &Value{Data: a.Data + b.Data, children: []*Value{a, b}, localGrads: []float64{1, 1}}
}

func Sub(a, b *Value) *Value {
	return &Value{Data: a.Data - b.Data, children: []*Value{a, b}, localGrads: []float64{1, -1}}
}

func Mul(a, b *Value) *Value {
	return &Value{Data: a.Data * b.Data, children: []*Value{a, b}, localGrads: []float64{b.Data, a.Data}}
}

func Div(a, b *Value) *Value {
	return &Value{Data: a.Data / b.Data, children: []*Value{a, b}, localGrads: []float64{1 / b.Data, -a.Data / (b.Data * b.Data)}}
}

func Neg(a *Value) *Value {
	return &Value{Data: -a.Data, children: []*Value{a}, localGrads: []float64{-1}}
}

// Scale multiplies by a constant without adding the constant to the tape.
func Scale(a *Value, k float64) *Value {
	return &Value{Data: a.Data * k, children: []*Value{a}, localGrads: []float64{k}}
}

// Shift adds a constant without adding the constant to the tape.
func Shift(a *Value, k float64) *Value {
	return &Value{Data: a.Data + k, children: []*Value{a}, localGrads: []float64{1}}
}

func Tanh(a *Value) *Value {
	t := math.Tanh(a.Data)
	return &Value{Data: t, children: []*Value{a}, localGrads: []float64{1 - t*t}}
}

func Relu(a *Value) *Value {
	if a.Data > 0 {
		return &Value{Data: a.Data, children: []*Value{a}, localGrads: []float64{1}}
	}
	return &Value{Data: 0, children: []*Value{a}, localGrads: []float64{0}}
}

func Exp(a *Value) *Value {
	e := math.Exp(a.Data)
	return &Value{Data: e, children: []*Value{a}, localGrads: []float64{e}}
}

func Log(a *Value) *Value {
	return &Value{Data: math.Log(a.Data), children: []*Value{a}, localGrads: []float64{1 / a.Data}}
}

func Sqrt(a *Value) *Value {
	s := math.Sqrt(a.Data)
	return &Value{Data: s, children: []*Value{a}, localGrads: []float64{1 / (2 * s)}}
}

func Square(a *Value) *Value {
	return &Value{Data: a.Data * a.Data, children: []*Value{a}, localGrads: []float64{2 * a.Data}}
}

// Sum folds a slice of nodes into a single node. Sum of an empty slice is the
// constant zero.
func Sum(xs []*Value) *Value {
	if len(xs) == 0 {
		return V(0)
	}
	data := 0.0
	children := make([]*Value, len(xs))
	grads := make([]float64, len(xs))
	for i, x := range xs {
		data += x.Data
		children[i] = x
		grads[i] = 1
	}
	return &Value{Data: data, children: children, localGrads: grads}
}

// Mean folds a slice of nodes into their arithmetic mean.
func Mean(xs []*Value) *Value {
	if len(xs) == 0 {
		return V(0)
	}
	return Scale(Sum(xs), 1/float64(len(xs)))
}

// Backward seeds out.Grad with 1 and propagates adjoints through the tape in
// reverse topological order. Gradients accumulate into Grad; leaves created
// with V keep whatever was propagated to them.
func Backward(out *Value) {
	order := make([]*Value, 0, 128)
	visited := make(map[*Value]bool)

	var visit func(v *Value)
	visit = func(v *Value) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, ch := range v.children {
			visit(ch)
		}
		order = append(order, v)
	}
	visit(out)

	out.Grad = 1
	for i := len(order) - 1; i >= 0; i-- {
		v := order[i]
		for j, ch := range v.children {
			ch.Grad += v.localGrads[j] * v.Grad
		}
	}
}
