package dataset

import "math/rand"

// lorenz96State holds the slow (atmospheric) X variables and the fast
// (oceanic) Y variables of the coupled two-layer Lorenz-96 system. Y is laid
// out as J fast variables per slow variable, in slow-variable order.
type lorenz96State struct {
	X []float64
	Y []float64
}

// lorenz96Params are the standard two-layer coefficients: forcing F, coupling
// strength H, spatial scale B and temporal scale C.
type lorenz96Params struct {
	K int
	J int
	F float64
	H float64
	B float64
	C float64
}

func (s lorenz96State) clone() lorenz96State {
	return lorenz96State{
		X: append([]float64(nil), s.X...),
		Y: append([]float64(nil), s.Y...),
	}
}

// derivative evaluates the coupled tendencies:
//
//	dX_k/dt = -X_{k-1}(X_{k-2} - X_{k+1}) - X_k + F - (HC/B) * sum_j Y_{j,k}
//	dY_j/dt = -C*B*Y_{j+1}(Y_{j+2} - Y_{j-1}) - C*Y_j + (HC/B) * X_k
func derivative(p lorenz96Params, s lorenz96State) lorenz96State {
	k := p.K
	n := p.K * p.J
	d := lorenz96State{X: make([]float64, k), Y: make([]float64, n)}

	couple := p.H * p.C / p.B
	for i := 0; i < k; i++ {
		sum := 0.0
		for j := 0; j < p.J; j++ {
			sum += s.Y[i*p.J+j]
		}
		d.X[i] = -s.X[mod(i-1, k)]*(s.X[mod(i-2, k)]-s.X[mod(i+1, k)]) - s.X[i] + p.F - couple*sum
	}
	for i := 0; i < n; i++ {
		d.Y[i] = -p.C*p.B*s.Y[mod(i+1, n)]*(s.Y[mod(i+2, n)]-s.Y[mod(i-1, n)]) - p.C*s.Y[i] + couple*s.X[i/p.J]
	}
	return d
}

// rk4Step advances the state by dt with a classical Runge-Kutta step.
func rk4Step(p lorenz96Params, s lorenz96State, dt float64) lorenz96State {
	k1 := derivative(p, s)
	k2 := derivative(p, axpy(s, k1, dt/2))
	k3 := derivative(p, axpy(s, k2, dt/2))
	k4 := derivative(p, axpy(s, k3, dt))

	next := s.clone()
	for i := range next.X {
		next.X[i] += dt / 6 * (k1.X[i] + 2*k2.X[i] + 2*k3.X[i] + k4.X[i])
	}
	for i := range next.Y {
		next.Y[i] += dt / 6 * (k1.Y[i] + 2*k2.Y[i] + 2*k3.Y[i] + k4.Y[i])
	}
	return next
}

func axpy(s, d lorenz96State, h float64) lorenz96State {
	out := s.clone()
	for i := range out.X {
		out.X[i] += h * d.X[i]
	}
	for i := range out.Y {
		out.Y[i] += h * d.Y[i]
	}
	return out
}

func mod(i, n int) int {
	return ((i % n) + n) % n
}

// initialState perturbs a rest state with small random noise so trajectories
// decorrelate across seeds.
func initialState(p lorenz96Params, rng *rand.Rand) lorenz96State {
	s := lorenz96State{X: make([]float64, p.K), Y: make([]float64, p.K*p.J)}
	for i := range s.X {
		s.X[i] = p.F + 0.01*rng.NormFloat64()
	}
	for i := range s.Y {
		s.Y[i] = 0.01 * rng.NormFloat64()
	}
	return s
}

// simulate integrates the system, discards spinUp steps and returns, per kept
// timestep, the per-node feature rows (X1 = slow variable, X2 = scaled fast
// sum coupled into it).
func simulate(p lorenz96Params, dt float64, steps, spinUp int, rng *rand.Rand) [][][]float64 {
	s := initialState(p, rng)
	for i := 0; i < spinUp; i++ {
		s = rk4Step(p, s, dt)
	}

	couple := p.H * p.C / p.B
	frames := make([][][]float64, steps)
	for t := 0; t < steps; t++ {
		s = rk4Step(p, s, dt)
		frame := make([][]float64, p.K)
		for k := 0; k < p.K; k++ {
			sum := 0.0
			for j := 0; j < p.J; j++ {
				sum += s.Y[k*p.J+j]
			}
			frame[k] = []float64{s.X[k], couple * sum}
		}
		frames[t] = frame
	}
	return frames
}
