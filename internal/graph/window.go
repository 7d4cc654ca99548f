package graph

// Window is a fixed-length ordered sequence of snapshots. Windows are treated
// as immutable values: Shift builds a new window rather than mutating the
// receiver, so the rollout feedback loop never corrupts its inputs.
type Window []Snapshot

// Shift drops the oldest snapshot and appends pred, preserving length.
func (w Window) Shift(pred Snapshot) Window {
	next := make(Window, 0, len(w))
	next = append(next, w[1:]...)
	next = append(next, pred)
	return next
}

// Consistent reports whether every snapshot in the window shares the first
// snapshot's topology and feature dimension.
func (w Window) Consistent() bool {
	if len(w) == 0 {
		return false
	}
	for _, s := range w[1:] {
		if !SameTopology(w[0], s) || s.FeatureDim() != w[0].FeatureDim() {
			return false
		}
	}
	return true
}
