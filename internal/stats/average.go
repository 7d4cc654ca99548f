package stats

import "errors"

// ErrEmptyAccumulator is returned when computing the mean of an accumulator
// that has seen no samples. "No data" is distinct from "zero loss": merging
// never divides by zero silently.
var ErrEmptyAccumulator = errors.New("metrics accumulator is empty")

// Average is a mergeable running mean. It stores sum and count rather than
// the mean itself so that merging accumulators over disjoint data yields the
// exact combined average.
type Average struct {
	Sum   float64 `json:"sum"`
	Count int     `json:"count"`
}

// Sample wraps a single observation.
func Sample(v float64) Average {
	return Average{Sum: v, Count: 1}
}

// Merge combines two accumulators; it is associative and commutative.
func (a Average) Merge(b Average) Average {
	return Average{Sum: a.Sum + b.Sum, Count: a.Count + b.Count}
}

// Empty reports whether the accumulator has seen no samples.
func (a Average) Empty() bool {
	return a.Count == 0
}

// Compute returns the mean, or ErrEmptyAccumulator when no samples were seen.
func (a Average) Compute() (float64, error) {
	if a.Count == 0 {
		return 0, ErrEmptyAccumulator
	}
	return a.Sum / float64(a.Count), nil
}
