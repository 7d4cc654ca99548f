package stats

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Writer receives scalar metrics tagged by global step.
type Writer interface {
	WriteScalars(step int64, scalars map[string]float64) error
}

// AddPrefix returns a new map with every key prefixed, the convention used to
// tag metrics by split name ("train_loss", "validation_loss", ...).
func AddPrefix(scalars map[string]float64, prefix string) map[string]float64 {
	out := make(map[string]float64, len(scalars))
	for k, v := range scalars {
		out[prefix+"_"+k] = v
	}
	return out
}

// LogWriter emits scalars as structured log events.
type LogWriter struct {
	Logger *slog.Logger
}

func (w *LogWriter) WriteScalars(step int64, scalars map[string]float64) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	keys := maps.Keys(scalars)
	slices.Sort(keys)
	attrs := make([]any, 0, 2+2*len(keys))
	attrs = append(attrs, "step", step)
	for _, k := range keys {
		attrs = append(attrs, k, scalars[k])
	}
	logger.Info("metrics", attrs...)
	return nil
}

// CSVWriter appends scalars to metrics.csv inside a run's artifacts
// directory, one row per (step, name, value).
type CSVWriter struct {
	mu   sync.Mutex
	path string
}

func NewCSVWriter(runDir string) (*CSVWriter, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}
	return &CSVWriter{path: filepath.Join(runDir, "metrics.csv")}, nil
}

func (w *CSVWriter) WriteScalars(step int64, scalars map[string]float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, statErr := os.Stat(w.path)
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if statErr != nil && os.IsNotExist(statErr) {
		if err := cw.Write([]string{"step", "name", "value"}); err != nil {
			return err
		}
	}
	keys := maps.Keys(scalars)
	slices.Sort(keys)
	for _, k := range keys {
		row := []string{
			strconv.FormatInt(step, 10),
			k,
			strconv.FormatFloat(scalars[k], 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MultiWriter fans scalars out to several writers; the first failure wins.
type MultiWriter []Writer

func (m MultiWriter) WriteScalars(step int64, scalars map[string]float64) error {
	for i, w := range m {
		if err := w.WriteScalars(step, scalars); err != nil {
			return fmt.Errorf("writer %d: %w", i, err)
		}
	}
	return nil
}
