package train

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/miamirabelli/lorenzGNN/internal/dataset"
	"github.com/miamirabelli/lorenzGNN/internal/stats"
	"github.com/miamirabelli/lorenzGNN/internal/storage"
)

// LoopConfig parameterizes one training run.
type LoopConfig struct {
	RunID                 string
	Dataset               *dataset.Dataset
	Store                 storage.Store
	Metrics               stats.Writer
	Logger                *slog.Logger
	Epochs                int
	EvalEveryEpochs       int
	CheckpointEveryEpochs int
	EvalSplits            []string
	Seed                  int64
}

// Loop orchestrates epochs of training with interleaved evaluation and
// checkpointing. Epoch cadence: after epoch e completes, evaluation fires
// when (e+1) divides EvalEveryEpochs evenly, checkpointing likewise.
type Loop struct {
	cfg LoopConfig
}

func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if cfg.Dataset == nil {
		return nil, fmt.Errorf("dataset is required")
	}
	if len(cfg.Dataset.Splits["train"]) == 0 {
		return nil, fmt.Errorf("train split is empty")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be > 0")
	}
	if cfg.EvalEveryEpochs < 0 || cfg.CheckpointEveryEpochs < 0 {
		return nil, fmt.Errorf("epoch cadences must be >= 0")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &stats.LogWriter{Logger: cfg.Logger}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if len(cfg.EvalSplits) == 0 {
		cfg.EvalSplits = dataset.SplitNames()
	}
	return &Loop{cfg: cfg}, nil
}

// Result summarizes a completed run.
type Result struct {
	State            State
	StartEpoch       int
	Resumed          bool
	TrainLossByEpoch []float64
	FinalLosses      map[string]float64
	Elapsed          time.Duration
}

// Run trains from st, resuming from the run's latest checkpoint when one
// exists. Resuming from a checkpoint written after epoch e produces the same
// parameters as an uninterrupted run of the same length.
func (l *Loop) Run(ctx context.Context, st State) (Result, error) {
	cfg := l.cfg
	began := time.Now()

	startEpoch := 0
	resumed := false
	if cp, ok, err := cfg.Store.LatestCheckpoint(ctx, cfg.RunID); err != nil {
		return Result{}, fmt.Errorf("load latest checkpoint: %w", err)
	} else if ok {
		if cp.Epoch > cfg.Epochs {
			return Result{}, fmt.Errorf("run %s already completed %d epochs, more than the requested %d", cfg.RunID, cp.Epoch, cfg.Epochs)
		}
		st = restoreState(st, cp)
		startEpoch = cp.Epoch
		resumed = true
		cfg.Logger.Info("resuming run",
			"run_id", cfg.RunID,
			"epoch", cp.Epoch,
			"step", cp.Step,
		)
	}

	cfg.Logger.Info("training",
		"run_id", cfg.RunID,
		"model", st.Model.Name(),
		"optimizer", st.Opt.Name(),
		"parameters", humanize.Comma(int64(st.Params.Count())),
		"epochs", cfg.Epochs,
		"train_samples", len(cfg.Dataset.Splits["train"]),
	)

	lossByEpoch := make([]float64, 0, cfg.Epochs-startEpoch)
	lastEvalEpoch := -1
	var final map[string]float64
	for epoch := startEpoch; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		acc := stats.Average{}
		for _, sample := range cfg.Dataset.Splits["train"] {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
			rng := rand.New(rand.NewSource(stepSeed(cfg.Seed, st.Step)))

			var sampleLoss stats.Average
			var err error
			st, sampleLoss, _, err = Step(st, sample, rng)
			if err != nil {
				return Result{}, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			acc = acc.Merge(sampleLoss)
		}

		epochLoss, err := acc.Compute()
		if err != nil {
			return Result{}, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		lossByEpoch = append(lossByEpoch, epochLoss)
		if err := cfg.Metrics.WriteScalars(int64(epoch+1), map[string]float64{"train_loss": epochLoss}); err != nil {
			return Result{}, fmt.Errorf("write train metrics: %w", err)
		}

		if cfg.EvalEveryEpochs > 0 && (epoch+1)%cfg.EvalEveryEpochs == 0 {
			losses, err := l.evaluate(ctx, st, epoch+1)
			if err != nil {
				return Result{}, err
			}
			final = losses
			lastEvalEpoch = epoch + 1
		}
		if cfg.CheckpointEveryEpochs > 0 && (epoch+1)%cfg.CheckpointEveryEpochs == 0 {
			if err := cfg.Store.SaveCheckpoint(ctx, snapshotCheckpoint(st, cfg.RunID, epoch+1)); err != nil {
				return Result{}, fmt.Errorf("save checkpoint at epoch %d: %w", epoch+1, err)
			}
			cfg.Logger.Info("checkpoint saved", "run_id", cfg.RunID, "epoch", epoch+1, "step", st.Step)
		}
	}

	if err := cfg.Store.SaveCheckpoint(ctx, snapshotCheckpoint(st, cfg.RunID, cfg.Epochs)); err != nil {
		return Result{}, fmt.Errorf("save final checkpoint: %w", err)
	}

	// evaluation always fires on the final epoch, cadence or not
	if lastEvalEpoch != cfg.Epochs {
		losses, err := l.evaluate(ctx, st, cfg.Epochs)
		if err != nil {
			return Result{}, err
		}
		final = losses
	}

	rec := storage.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           cfg.RunID,
		Model:           st.Model.Name(),
		Optimizer:       st.Opt.Name(),
		Epochs:          cfg.Epochs,
		Seed:            cfg.Seed,
		FinalTrainLoss:  final["train"],
		FinalValLoss:    final["validation"],
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := cfg.Store.SaveRun(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("save run record: %w", err)
	}

	elapsed := time.Since(began)
	cfg.Logger.Info("training finished",
		"run_id", cfg.RunID,
		"steps", st.Step,
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)

	return Result{
		State:            st,
		StartEpoch:       startEpoch,
		Resumed:          resumed,
		TrainLossByEpoch: lossByEpoch,
		FinalLosses:      final,
		Elapsed:          elapsed,
	}, nil
}

// evaluate measures loss on every configured split, writes the scalars
// tagged by split name, and returns the raw per-split losses.
func (l *Loop) evaluate(ctx context.Context, st State, epoch int) (map[string]float64, error) {
	cfg := l.cfg
	accs, err := EvaluateModel(ctx, st, cfg.Dataset, cfg.EvalSplits)
	if err != nil {
		return nil, fmt.Errorf("evaluate at epoch %d: %w", epoch, err)
	}

	losses := make(map[string]float64, len(accs))
	scalars := make(map[string]float64, len(accs))
	for split, acc := range accs {
		if acc.Empty() {
			cfg.Logger.Warn("skipping empty split", "split", split, "epoch", epoch)
			continue
		}
		loss, err := acc.Compute()
		if err != nil {
			return nil, fmt.Errorf("compute %s loss: %w", split, err)
		}
		losses[split] = loss
		for k, v := range stats.AddPrefix(map[string]float64{"loss": loss}, split) {
			scalars[k] = v
		}
	}
	if len(scalars) > 0 {
		if err := cfg.Metrics.WriteScalars(int64(epoch), scalars); err != nil {
			return nil, fmt.Errorf("write evaluation metrics: %w", err)
		}
	}
	return losses, nil
}
