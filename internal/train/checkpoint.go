package train

import (
	"time"

	"github.com/miamirabelli/lorenzGNN/internal/model"
	"github.com/miamirabelli/lorenzGNN/internal/optim"
	"github.com/miamirabelli/lorenzGNN/internal/storage"
)

func snapshotCheckpoint(st State, runID string, epoch int) storage.Checkpoint {
	return storage.Checkpoint{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Epoch:           epoch,
		Step:            st.Step,
		Params:          st.Params.Raw(),
		OptStep:         st.OptState.Step,
		OptM:            st.OptState.M,
		OptV:            st.OptState.V,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
}

func restoreState(st State, cp storage.Checkpoint) State {
	st.Params = model.FromRaw(cp.Params)
	st.OptState = optim.State{Step: cp.OptStep, M: cp.OptM, V: cp.OptV}
	st.Step = cp.Step
	return st
}

// stepSeed derives a per-step RNG seed from the run seed and the global step
// counter via a splitmix64 round. A resumed run replays the same dropout
// randomness as an uninterrupted one because the seed depends on nothing else.
func stepSeed(seed, step int64) int64 {
	z := uint64(seed) + uint64(step)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
