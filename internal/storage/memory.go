package storage

import (
	"context"
	"sort"
	"sync"
)

type checkpointKey struct {
	runID string
	epoch int
}

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	checkpoints map[checkpointKey]Checkpoint
	latest      map[string]int
	runs        map[string]RunRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.checkpoints = make(map[checkpointKey]Checkpoint)
	s.latest = make(map[string]int)
	s.runs = make(map[string]RunRecord)
	return nil
}

func (s *MemoryStore) SaveCheckpoint(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[checkpointKey{cp.RunID, cp.Epoch}] = copyCheckpoint(cp)
	if best, ok := s.latest[cp.RunID]; !ok || cp.Epoch > best {
		s.latest[cp.RunID] = cp.Epoch
	}
	return nil
}

func (s *MemoryStore) GetCheckpoint(_ context.Context, runID string, epoch int) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[checkpointKey{runID, epoch}]
	if !ok {
		return Checkpoint{}, false, nil
	}
	return copyCheckpoint(cp), true, nil
}

func (s *MemoryStore) LatestCheckpoint(_ context.Context, runID string) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	epoch, ok := s.latest[runID]
	if !ok {
		return Checkpoint{}, false, nil
	}
	cp, ok := s.checkpoints[checkpointKey{runID, epoch}]
	if !ok {
		return Checkpoint{}, false, nil
	}
	return copyCheckpoint(cp), true, nil
}

func (s *MemoryStore) SaveRun(_ context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[rec.RunID] = rec
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	return rec, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC == out[j].CreatedAtUTC {
			return out[i].RunID < out[j].RunID
		}
		return out[i].CreatedAtUTC > out[j].CreatedAtUTC
	})
	return out, nil
}

func copyCheckpoint(cp Checkpoint) Checkpoint {
	out := cp
	out.Params = copyMatrixMap(cp.Params)
	out.OptM = copyMatrixMap(cp.OptM)
	out.OptV = copyMatrixMap(cp.OptV)
	return out
}

func copyMatrixMap(src map[string][][]float64) map[string][][]float64 {
	if src == nil {
		return nil
	}
	out := make(map[string][][]float64, len(src))
	for name, rows := range src {
		copied := make([][]float64, len(rows))
		for i, row := range rows {
			copied[i] = append([]float64(nil), row...)
		}
		out[name] = copied
	}
	return out
}
