package storage

import "context"

// Checkpoint is one persisted training state: parameters, optimizer moments
// and the epoch/step counters needed for exact resume.
type Checkpoint struct {
	VersionedRecord
	RunID        string                 `json:"run_id"`
	Epoch        int                    `json:"epoch"`
	Step         int64                  `json:"step"`
	Params       map[string][][]float64 `json:"params"`
	OptStep      int                    `json:"opt_step"`
	OptM         map[string][][]float64 `json:"opt_m,omitempty"`
	OptV         map[string][][]float64 `json:"opt_v,omitempty"`
	CreatedAtUTC string                 `json:"created_at_utc"`
}

// RunRecord summarizes one completed (or in-progress) training run.
type RunRecord struct {
	VersionedRecord
	RunID          string  `json:"run_id"`
	Model          string  `json:"model"`
	Optimizer      string  `json:"optimizer"`
	Epochs         int     `json:"epochs"`
	Seed           int64   `json:"seed"`
	FinalTrainLoss float64 `json:"final_train_loss"`
	FinalValLoss   float64 `json:"final_val_loss"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// Store defines persistence operations for checkpoints and run records.
type Store interface {
	Init(ctx context.Context) error
	SaveCheckpoint(ctx context.Context, cp Checkpoint) error
	GetCheckpoint(ctx context.Context, runID string, epoch int) (Checkpoint, bool, error)
	LatestCheckpoint(ctx context.Context, runID string) (Checkpoint, bool, error)
	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, runID string) (RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]RunRecord, error)
}
