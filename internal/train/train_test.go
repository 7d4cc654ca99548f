package train

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/miamirabelli/lorenzGNN/internal/dataset"
	"github.com/miamirabelli/lorenzGNN/internal/model"
	"github.com/miamirabelli/lorenzGNN/internal/optim"
	"github.com/miamirabelli/lorenzGNN/internal/stats"
	"github.com/miamirabelli/lorenzGNN/internal/storage"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()

	cfg := dataset.DefaultConfig()
	cfg.NumNodes = 6
	cfg.FastPerNode = 4
	cfg.Steps = 60
	cfg.SpinUp = 10
	cfg.InputSteps = 2
	cfg.OutputSteps = 2
	cfg.Stride = 4
	ds, err := dataset.Generate(cfg)
	if err != nil {
		t.Fatalf("generate dataset: %v", err)
	}
	return ds
}

func testState(t *testing.T, ds *dataset.Dataset, seed int64) State {
	t.Helper()

	mcfg := model.DefaultConfig()
	mcfg.LatentSize = 4
	m, err := model.New(mcfg)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	params, err := m.Init(rand.New(rand.NewSource(seed)), ds.Splits["train"][0].Input)
	if err != nil {
		t.Fatalf("init params: %v", err)
	}

	opt, err := optim.New(optim.DefaultConfig())
	if err != nil {
		t.Fatalf("new optimizer: %v", err)
	}
	return NewState(m, opt, params)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paramsEqual(a, b model.Params) bool {
	if len(a) != len(b) {
		return false
	}
	for name, mat := range a {
		other, ok := b[name]
		if !ok || len(mat) != len(other) {
			return false
		}
		for i := range mat {
			if len(mat[i]) != len(other[i]) {
				return false
			}
			for j := range mat[i] {
				if mat[i][j].Data != other[i][j].Data {
					return false
				}
			}
		}
	}
	return true
}

func TestStepReplacesParamsWithoutMutatingOld(t *testing.T) {
	ds := testDataset(t)
	st := testState(t, ds, 7)
	before := st.Params.Raw()

	next, loss, preds, err := Step(st, ds.Splits["train"][0], nil)
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if next.Step != st.Step+1 {
		t.Fatalf("step counter not advanced: %d -> %d", st.Step, next.Step)
	}
	if len(preds) != len(ds.Splits["train"][0].Target) {
		t.Fatalf("expected %d predictions, got %d", len(ds.Splits["train"][0].Target), len(preds))
	}
	if loss.Empty() {
		t.Fatal("expected a loss sample")
	}

	for name, mat := range st.Params {
		for i, row := range mat {
			for j, v := range row {
				if v.Data != before[name][i][j] {
					t.Fatalf("old params mutated at %s[%d][%d]", name, i, j)
				}
			}
		}
	}
	if paramsEqual(st.Params, next.Params) {
		t.Fatal("expected updated parameters to differ")
	}
}

func TestEvaluateModelDeterministic(t *testing.T) {
	ds := testDataset(t)
	st := testState(t, ds, 11)
	ctx := context.Background()

	first, err := EvaluateModel(ctx, st, ds, dataset.SplitNames())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	second, err := EvaluateModel(ctx, st, ds, dataset.SplitNames())
	if err != nil {
		t.Fatalf("evaluate again: %v", err)
	}

	for _, split := range dataset.SplitNames() {
		a, errA := first[split].Compute()
		b, errB := second[split].Compute()
		if errA != nil || errB != nil {
			t.Fatalf("compute %s: %v %v", split, errA, errB)
		}
		if a != b {
			t.Fatalf("evaluation not deterministic on %s: %v vs %v", split, a, b)
		}
	}
}

func TestEvaluateModelUnknownSplit(t *testing.T) {
	ds := testDataset(t)
	st := testState(t, ds, 11)

	_, err := EvaluateModel(context.Background(), st, ds, []string{"holdout"})
	if !errors.Is(err, ErrUnknownSplit) {
		t.Fatalf("expected unknown split error, got %v", err)
	}
}

func TestEvaluateModelEmptySplitIsNotZeroLoss(t *testing.T) {
	ds := testDataset(t)
	ds.Splits["validation"] = nil
	st := testState(t, ds, 11)

	accs, err := EvaluateModel(context.Background(), st, ds, []string{"validation"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	acc := accs["validation"]
	if !acc.Empty() {
		t.Fatal("expected empty accumulator for empty split")
	}
	if _, err := acc.Compute(); !errors.Is(err, stats.ErrEmptyAccumulator) {
		t.Fatalf("expected explicit empty-accumulator error, got %v", err)
	}
}

func TestLoopTrainsAndRecordsRun(t *testing.T) {
	ctx := context.Background()
	ds := testDataset(t)
	st := testState(t, ds, 3)

	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	loop, err := NewLoop(LoopConfig{
		RunID:                 "run-1",
		Dataset:               ds,
		Store:                 store,
		Logger:                quietLogger(),
		Epochs:                3,
		EvalEveryEpochs:       2,
		CheckpointEveryEpochs: 2,
		Seed:                  3,
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	result, err := loop.Run(ctx, st)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Resumed {
		t.Fatal("fresh run should not resume")
	}
	if len(result.TrainLossByEpoch) != 3 {
		t.Fatalf("expected 3 epoch losses, got %d", len(result.TrainLossByEpoch))
	}
	if _, ok := result.FinalLosses["train"]; !ok {
		t.Fatal("expected final train loss")
	}

	if _, ok, err := store.GetCheckpoint(ctx, "run-1", 2); err != nil || !ok {
		t.Fatalf("expected checkpoint at epoch 2: ok=%v err=%v", ok, err)
	}
	latest, ok, err := store.LatestCheckpoint(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("latest checkpoint: ok=%v err=%v", ok, err)
	}
	if latest.Epoch != 3 {
		t.Fatalf("expected final checkpoint at epoch 3, got %d", latest.Epoch)
	}

	rec, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("run record: ok=%v err=%v", ok, err)
	}
	if rec.Epochs != 3 || rec.Model == "" {
		t.Fatalf("unexpected run record: %+v", rec)
	}
}

func TestLoopResumeMatchesUninterruptedRun(t *testing.T) {
	ctx := context.Background()
	ds := testDataset(t)

	runLoop := func(store storage.Store, runID string, epochs int) Result {
		t.Helper()
		loop, err := NewLoop(LoopConfig{
			RunID:                 runID,
			Dataset:               ds,
			Store:                 store,
			Logger:                quietLogger(),
			Epochs:                epochs,
			CheckpointEveryEpochs: 1,
			Seed:                  9,
		})
		if err != nil {
			t.Fatalf("new loop: %v", err)
		}
		result, err := loop.Run(ctx, testState(t, ds, 9))
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}

	straightStore := storage.NewMemoryStore()
	if err := straightStore.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	straight := runLoop(straightStore, "run-straight", 4)

	resumedStore := storage.NewMemoryStore()
	if err := resumedStore.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}
	runLoop(resumedStore, "run-resumed", 2)
	resumed := runLoop(resumedStore, "run-resumed", 4)

	if !resumed.Resumed || resumed.StartEpoch != 2 {
		t.Fatalf("expected resume from epoch 2, got resumed=%v start=%d", resumed.Resumed, resumed.StartEpoch)
	}
	if !paramsEqual(straight.State.Params, resumed.State.Params) {
		t.Fatal("resumed run diverged from uninterrupted run")
	}
	if straight.State.Step != resumed.State.Step {
		t.Fatalf("step counters differ: %d vs %d", straight.State.Step, resumed.State.Step)
	}
}

type recordingWriter struct {
	writes map[int64]map[string]float64
}

func (w *recordingWriter) WriteScalars(step int64, scalars map[string]float64) error {
	if w.writes == nil {
		w.writes = make(map[int64]map[string]float64)
	}
	merged := w.writes[step]
	if merged == nil {
		merged = make(map[string]float64)
		w.writes[step] = merged
	}
	for k, v := range scalars {
		merged[k] = v
	}
	return nil
}

func TestLoopResumeWithFewerEpochsFails(t *testing.T) {
	ctx := context.Background()
	ds := testDataset(t)

	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	newLoop := func(epochs int) *Loop {
		t.Helper()
		loop, err := NewLoop(LoopConfig{
			RunID:                 "run-shrunk",
			Dataset:               ds,
			Store:                 store,
			Logger:                quietLogger(),
			Epochs:                epochs,
			CheckpointEveryEpochs: 1,
			Seed:                  5,
		})
		if err != nil {
			t.Fatalf("new loop: %v", err)
		}
		return loop
	}

	if _, err := newLoop(3).Run(ctx, testState(t, ds, 5)); err != nil {
		t.Fatalf("first run: %v", err)
	}

	_, err := newLoop(1).Run(ctx, testState(t, ds, 5))
	if err == nil {
		t.Fatal("expected error when resuming with fewer epochs than completed")
	}

	// resuming with the same epoch count is a no-op, not an error
	result, err := newLoop(3).Run(ctx, testState(t, ds, 5))
	if err != nil {
		t.Fatalf("resume at completed epoch count: %v", err)
	}
	if !result.Resumed || result.StartEpoch != 3 || len(result.TrainLossByEpoch) != 0 {
		t.Fatalf("expected completed-run resume to train nothing: %+v", result)
	}
}

func TestLoopAlwaysWritesFinalEvaluationMetrics(t *testing.T) {
	ctx := context.Background()
	ds := testDataset(t)

	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init store: %v", err)
	}

	// 3 epochs with an eval cadence of 2: the cadence fires at epoch 2 only,
	// so the final epoch's evaluation must be written outside the cadence
	writer := &recordingWriter{}
	loop, err := NewLoop(LoopConfig{
		RunID:           "run-final-eval",
		Dataset:         ds,
		Store:           store,
		Metrics:         writer,
		Logger:          quietLogger(),
		Epochs:          3,
		EvalEveryEpochs: 2,
		Seed:            5,
	})
	if err != nil {
		t.Fatalf("new loop: %v", err)
	}

	result, err := loop.Run(ctx, testState(t, ds, 5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for _, step := range []int64{2, 3} {
		scalars, ok := writer.writes[step]
		if !ok {
			t.Fatalf("expected evaluation metrics at epoch %d: %+v", step, writer.writes)
		}
		for _, split := range dataset.SplitNames() {
			if _, ok := scalars[split+"_loss"]; !ok {
				t.Fatalf("missing %s loss at epoch %d: %+v", split, step, scalars)
			}
		}
	}
	if got, want := result.FinalLosses["train"], writer.writes[3]["train_loss"]; got != want {
		t.Fatalf("final losses disagree with written metrics: %v vs %v", got, want)
	}
}

func TestLoopRejectsEmptyTrainSplit(t *testing.T) {
	ds := testDataset(t)
	ds.Splits["train"] = nil

	store := storage.NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init store: %v", err)
	}
	_, err := NewLoop(LoopConfig{
		RunID:   "run-1",
		Dataset: ds,
		Store:   store,
		Epochs:  1,
	})
	if err == nil {
		t.Fatal("expected error for empty train split")
	}
}

func TestStepSeedIsStable(t *testing.T) {
	if stepSeed(9, 3) != stepSeed(9, 3) {
		t.Fatal("step seed must be a pure function")
	}
	if stepSeed(9, 3) == stepSeed(9, 4) {
		t.Fatal("adjacent steps should get distinct seeds")
	}
	if stepSeed(9, 3) == stepSeed(10, 3) {
		t.Fatal("distinct run seeds should get distinct step seeds")
	}
}
