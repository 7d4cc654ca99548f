// Package lorenzgnn is the embeddable API over the training pipeline: the
// same operations the CLI exposes, usable from other Go programs.
package lorenzgnn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/miamirabelli/lorenzGNN/internal/dataset"
	"github.com/miamirabelli/lorenzGNN/internal/model"
	"github.com/miamirabelli/lorenzGNN/internal/optim"
	"github.com/miamirabelli/lorenzGNN/internal/stats"
	"github.com/miamirabelli/lorenzGNN/internal/storage"
	"github.com/miamirabelli/lorenzGNN/internal/train"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "lorenzgnn.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	exportsDir   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// TrainRequest configures one training run. Zero values select defaults;
// the Disable* switches exist because skip connections, layer norm and
// feature normalization default to on.
type TrainRequest struct {
	RunID string

	Model               string
	LatentSize          int
	DropoutRate         float64
	DisableSkip         bool
	DisableLayerNorm    bool
	MessagePassingSteps int

	Optimizer    string
	LearningRate float64
	Momentum     float64

	Epochs                int
	EvalEveryEpochs       int
	CheckpointEveryEpochs int
	Seed                  int64

	NumNodes         int
	TrajectorySteps  int
	InputSteps       int
	OutputSteps      int
	DisableNormalize bool
}

type TrainSummary struct {
	RunID            string
	ArtifactsDir     string
	TrainLossByEpoch []float64
	FinalLosses      map[string]float64
	ParamCount       int
	Epochs           int
	Resumed          bool
}

func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Epochs <= 0 {
		req.Epochs = 30
	}
	if req.EvalEveryEpochs < 0 || req.CheckpointEveryEpochs < 0 {
		return TrainSummary{}, errors.New("epoch cadences must be >= 0")
	}
	if req.EvalEveryEpochs == 0 {
		req.EvalEveryEpochs = 5
	}
	if req.CheckpointEveryEpochs == 0 {
		req.CheckpointEveryEpochs = 5
	}
	if req.Seed == 0 {
		req.Seed = 42
	}

	dsCfg := datasetConfig(req)
	ds, err := dataset.Generate(dsCfg)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("generate dataset: %w", err)
	}

	mCfg := modelConfig(req)
	m, err := model.New(mCfg)
	if err != nil {
		return TrainSummary{}, err
	}
	params, err := m.Init(rand.New(rand.NewSource(req.Seed)), ds.Splits["train"][0].Input)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("init parameters: %w", err)
	}

	oCfg := optimConfig(req)
	opt, err := optim.New(oCfg)
	if err != nil {
		return TrainSummary{}, err
	}

	runDir := filepath.Join(c.artifactsDir, req.RunID)
	csv, err := stats.NewCSVWriter(runDir)
	if err != nil {
		return TrainSummary{}, fmt.Errorf("open metrics writer: %w", err)
	}
	metrics := stats.MultiWriter{csv, &stats.LogWriter{Logger: c.logger}}

	loop, err := train.NewLoop(train.LoopConfig{
		RunID:                 req.RunID,
		Dataset:               ds,
		Store:                 c.store,
		Metrics:               metrics,
		Logger:                c.logger,
		Epochs:                req.Epochs,
		EvalEveryEpochs:       req.EvalEveryEpochs,
		CheckpointEveryEpochs: req.CheckpointEveryEpochs,
		Seed:                  req.Seed,
	})
	if err != nil {
		return TrainSummary{}, err
	}

	result, err := loop.Run(ctx, train.NewState(m, opt, params))
	if err != nil {
		return TrainSummary{}, err
	}

	runConfig := stats.RunConfig{
		RunID:               req.RunID,
		Model:               mCfg.Kind,
		LatentSize:          mCfg.LatentSize,
		DropoutRate:         mCfg.DropoutRate,
		SkipConnections:     mCfg.SkipConnections,
		LayerNorm:           mCfg.LayerNorm,
		MessagePassingSteps: mCfg.MessagePassingSteps,
		Optimizer:           oCfg.Kind,
		LearningRate:        oCfg.LearningRate,
		Momentum:            oCfg.Momentum,
		Epochs:              req.Epochs,
		EvalEveryEpochs:     req.EvalEveryEpochs,
		CheckpointEvery:     req.CheckpointEveryEpochs,
		Seed:                req.Seed,
		NumNodes:            dsCfg.NumNodes,
		InputSteps:          dsCfg.InputSteps,
		OutputSteps:         dsCfg.OutputSteps,
		TrajectorySteps:     dsCfg.Steps,
		Normalize:           dsCfg.Normalize,
	}
	paramCount := result.State.Params.Count()
	if _, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:           runConfig,
		TrainLossByEpoch: result.TrainLossByEpoch,
		FinalLosses:      result.FinalLosses,
		ParamCount:       paramCount,
		Epochs:           req.Epochs,
	}); err != nil {
		return TrainSummary{}, fmt.Errorf("write run artifacts: %w", err)
	}

	rec, ok, err := c.store.GetRun(ctx, req.RunID)
	if err != nil {
		return TrainSummary{}, err
	}
	if !ok {
		return TrainSummary{}, fmt.Errorf("run record missing after training: %s", req.RunID)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          rec.RunID,
		Model:          rec.Model,
		Optimizer:      rec.Optimizer,
		Epochs:         rec.Epochs,
		Seed:           rec.Seed,
		FinalTrainLoss: rec.FinalTrainLoss,
		FinalValLoss:   rec.FinalValLoss,
		CreatedAtUTC:   rec.CreatedAtUTC,
	}); err != nil {
		return TrainSummary{}, fmt.Errorf("update run index: %w", err)
	}

	return TrainSummary{
		RunID:            req.RunID,
		ArtifactsDir:     runDir,
		TrainLossByEpoch: result.TrainLossByEpoch,
		FinalLosses:      result.FinalLosses,
		ParamCount:       paramCount,
		Epochs:           req.Epochs,
		Resumed:          result.Resumed,
	}, nil
}

type EvaluateRequest struct {
	RunID  string
	Latest bool
	Splits []string
}

type EvaluateSummary struct {
	RunID       string
	Epoch       int
	Losses      map[string]float64
	EmptySplits []string
}

// Evaluate reloads a run's latest checkpoint, regenerates its dataset from
// the recorded configuration, and measures deterministic rollout loss per
// split.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return EvaluateSummary{}, err
	}
	splits := req.Splits
	if len(splits) == 0 {
		splits = dataset.SplitNames()
	}

	runConfig, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return EvaluateSummary{}, err
	}
	if !ok {
		return EvaluateSummary{}, fmt.Errorf("no artifacts for run %s", runID)
	}

	cp, ok, err := c.store.LatestCheckpoint(ctx, runID)
	if err != nil {
		return EvaluateSummary{}, err
	}
	if !ok {
		return EvaluateSummary{}, fmt.Errorf("no checkpoint for run %s", runID)
	}

	ds, m, err := rebuildRun(runConfig)
	if err != nil {
		return EvaluateSummary{}, err
	}

	st := train.State{Model: m, Params: model.FromRaw(cp.Params)}
	accs, err := train.EvaluateModel(ctx, st, ds, splits)
	if err != nil {
		return EvaluateSummary{}, err
	}

	summary := EvaluateSummary{RunID: runID, Epoch: cp.Epoch, Losses: make(map[string]float64, len(accs))}
	for split, acc := range accs {
		if acc.Empty() {
			summary.EmptySplits = append(summary.EmptySplits, split)
			continue
		}
		loss, err := acc.Compute()
		if err != nil {
			return EvaluateSummary{}, err
		}
		summary.Losses[split] = loss
	}
	return summary, nil
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	Model          string
	Optimizer      string
	Epochs         int
	Seed           int64
	FinalTrainLoss float64
	FinalValLoss   float64
	CreatedAtUTC   string
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]RunItem, 0, len(records))
	for _, rec := range records {
		out = append(out, RunItem{
			RunID:          rec.RunID,
			Model:          rec.Model,
			Optimizer:      rec.Optimizer,
			Epochs:         rec.Epochs,
			Seed:           rec.Seed,
			FinalTrainLoss: rec.FinalTrainLoss,
			FinalValLoss:   rec.FinalValLoss,
			CreatedAtUTC:   rec.CreatedAtUTC,
		})
	}
	return out, nil
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", errors.New("run id or latest is required")
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func datasetConfig(req TrainRequest) dataset.Config {
	cfg := dataset.DefaultConfig()
	cfg.Seed = req.Seed
	if req.NumNodes > 0 {
		cfg.NumNodes = req.NumNodes
	}
	if req.TrajectorySteps > 0 {
		cfg.Steps = req.TrajectorySteps
	}
	if req.InputSteps > 0 {
		cfg.InputSteps = req.InputSteps
	}
	if req.OutputSteps > 0 {
		cfg.OutputSteps = req.OutputSteps
	}
	if req.DisableNormalize {
		cfg.Normalize = false
	}
	return cfg
}

func modelConfig(req TrainRequest) model.Config {
	cfg := model.DefaultConfig()
	if req.Model != "" {
		cfg.Kind = req.Model
	}
	if req.LatentSize > 0 {
		cfg.LatentSize = req.LatentSize
	}
	if req.DropoutRate > 0 {
		cfg.DropoutRate = req.DropoutRate
	}
	if req.MessagePassingSteps > 0 {
		cfg.MessagePassingSteps = req.MessagePassingSteps
	}
	cfg.SkipConnections = !req.DisableSkip
	cfg.LayerNorm = !req.DisableLayerNorm
	return cfg
}

func optimConfig(req TrainRequest) optim.Config {
	cfg := optim.DefaultConfig()
	if req.Optimizer != "" {
		cfg.Kind = req.Optimizer
	}
	if req.LearningRate > 0 {
		cfg.LearningRate = req.LearningRate
	}
	if req.Momentum > 0 {
		cfg.Momentum = req.Momentum
	}
	return cfg
}

func rebuildRun(runConfig stats.RunConfig) (*dataset.Dataset, model.GraphModel, error) {
	dsCfg := dataset.DefaultConfig()
	dsCfg.Seed = runConfig.Seed
	if runConfig.NumNodes > 0 {
		dsCfg.NumNodes = runConfig.NumNodes
	}
	if runConfig.TrajectorySteps > 0 {
		dsCfg.Steps = runConfig.TrajectorySteps
	}
	if runConfig.InputSteps > 0 {
		dsCfg.InputSteps = runConfig.InputSteps
	}
	if runConfig.OutputSteps > 0 {
		dsCfg.OutputSteps = runConfig.OutputSteps
	}
	dsCfg.Normalize = runConfig.Normalize

	ds, err := dataset.Generate(dsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("regenerate dataset: %w", err)
	}

	m, err := model.New(model.Config{
		Kind:                runConfig.Model,
		LatentSize:          runConfig.LatentSize,
		DropoutRate:         runConfig.DropoutRate,
		SkipConnections:     runConfig.SkipConnections,
		LayerNorm:           runConfig.LayerNorm,
		MessagePassingSteps: runConfig.MessagePassingSteps,
	})
	if err != nil {
		return nil, nil, err
	}
	return ds, m, nil
}
