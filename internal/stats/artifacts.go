package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const runIndexFile = "run_index.json"

// RunConfig records the hyperparameters of one training run.
type RunConfig struct {
	RunID               string  `json:"run_id"`
	Model               string  `json:"model"`
	LatentSize          int     `json:"latent_size"`
	DropoutRate         float64 `json:"dropout_rate"`
	SkipConnections     bool    `json:"skip_connections"`
	LayerNorm           bool    `json:"layer_norm"`
	MessagePassingSteps int     `json:"message_passing_steps,omitempty"`
	Optimizer           string  `json:"optimizer"`
	LearningRate        float64 `json:"learning_rate"`
	Momentum            float64 `json:"momentum,omitempty"`
	Epochs              int     `json:"epochs"`
	EvalEveryEpochs     int     `json:"eval_every_epochs"`
	CheckpointEvery     int     `json:"checkpoint_every_epochs"`
	Seed                int64   `json:"seed"`
	NumNodes            int     `json:"num_nodes"`
	InputSteps          int     `json:"input_steps"`
	OutputSteps         int     `json:"output_steps"`
	TrajectorySteps     int     `json:"trajectory_steps"`
	Normalize           bool    `json:"normalize"`
}

// RunArtifacts is everything persisted to a run's artifacts directory.
type RunArtifacts struct {
	Config           RunConfig          `json:"config"`
	TrainLossByEpoch []float64          `json:"train_loss_by_epoch"`
	FinalLosses      map[string]float64 `json:"final_losses"`
	ParamCount       int                `json:"param_count"`
	Epochs           int                `json:"epochs_completed"`
}

// RunIndexEntry is one row of the artifacts directory's run index.
type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Model          string  `json:"model"`
	Optimizer      string  `json:"optimizer"`
	Epochs         int     `json:"epochs"`
	Seed           int64   `json:"seed"`
	FinalTrainLoss float64 `json:"final_train_loss"`
	FinalValLoss   float64 `json:"final_val_loss"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// WriteRunArtifacts persists a run's config and loss history under
// baseDir/<run-id>/ and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "loss_history.json"), map[string]any{
		"train_loss_by_epoch": artifacts.TrainLossByEpoch,
		"final_losses":        artifacts.FinalLosses,
		"param_count":         artifacts.ParamCount,
		"epochs_completed":    artifacts.Epochs,
	}); err != nil {
		return "", err
	}

	return runDir, nil
}

// ReadRunConfig loads a run's persisted configuration, reporting false when
// the run directory has no config.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// AppendRunIndex upserts an entry into baseDir's run index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the run index sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ExportRunArtifacts copies a run's artifacts into outDir/<run-id>/.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{"config.json", "loss_history.json"} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	metricsPath := filepath.Join(src, "metrics.csv")
	if _, err := os.Stat(metricsPath); err == nil {
		if err := copyFile(metricsPath, filepath.Join(dst, "metrics.csv")); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
