package graph

import (
	"errors"
	"fmt"

	"github.com/miamirabelli/lorenzGNN/internal/ad"
)

var (
	ErrEmptySnapshot   = errors.New("snapshot has no nodes")
	ErrRaggedFeatures  = errors.New("node feature rows have unequal length")
	ErrBadConnectivity = errors.New("sender/receiver lists are inconsistent")
)

// Snapshot is the state of the simulated system at one discrete timestep:
// per-node features over a fixed sender/receiver topology. Node features are
// autodiff tape nodes so that predictions fed back into the rollout stay
// differentiable; inference simply never calls Backward.
type Snapshot struct {
	Nodes   [][]*ad.Value
	Edges   [][]*ad.Value
	Globals []*ad.Value

	// Senders[i] -> Receivers[i] is edge i. The slices are shared by
	// reference across all snapshots of a trajectory (static topology).
	Senders   []int
	Receivers []int
}

// NewSnapshot lifts raw node features onto the tape over the given topology.
func NewSnapshot(nodes [][]float64, senders, receivers []int) (Snapshot, error) {
	if len(nodes) == 0 {
		return Snapshot{}, ErrEmptySnapshot
	}
	if len(senders) != len(receivers) {
		return Snapshot{}, fmt.Errorf("%w: %d senders, %d receivers", ErrBadConnectivity, len(senders), len(receivers))
	}
	dim := len(nodes[0])
	lifted := make([][]*ad.Value, len(nodes))
	for i, row := range nodes {
		if len(row) != dim {
			return Snapshot{}, fmt.Errorf("%w: row %d has %d features, want %d", ErrRaggedFeatures, i, len(row), dim)
		}
		lifted[i] = make([]*ad.Value, dim)
		for j, x := range row {
			lifted[i][j] = ad.V(x)
		}
	}
	for i, s := range senders {
		if s < 0 || s >= len(nodes) || receivers[i] < 0 || receivers[i] >= len(nodes) {
			return Snapshot{}, fmt.Errorf("%w: edge %d references node out of range", ErrBadConnectivity, i)
		}
	}
	return Snapshot{Nodes: lifted, Senders: senders, Receivers: receivers}, nil
}

func (s Snapshot) NumNodes() int { return len(s.Nodes) }

func (s Snapshot) FeatureDim() int {
	if len(s.Nodes) == 0 {
		return 0
	}
	return len(s.Nodes[0])
}

// Features returns a detached copy of the node feature matrix.
func (s Snapshot) Features() [][]float64 {
	out := make([][]float64, len(s.Nodes))
	for i, row := range s.Nodes {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v.Data
		}
	}
	return out
}

// SameTopology reports whether two snapshots share node count and identical
// edge lists.
func SameTopology(a, b Snapshot) bool {
	if a.NumNodes() != b.NumNodes() || len(a.Senders) != len(b.Senders) {
		return false
	}
	for i := range a.Senders {
		if a.Senders[i] != b.Senders[i] || a.Receivers[i] != b.Receivers[i] {
			return false
		}
	}
	return true
}

// RingTopology builds the cyclic Lorenz-96 connectivity: each node receives
// edges from its neighbors at the given offsets (modulo n).
func RingTopology(n int, offsets []int) (senders, receivers []int) {
	for r := 0; r < n; r++ {
		for _, off := range offsets {
			s := ((r+off)%n + n) % n
			senders = append(senders, s)
			receivers = append(receivers, r)
		}
	}
	return senders, receivers
}
