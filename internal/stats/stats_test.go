package stats

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestAverageMergeAssociativity(t *testing.T) {
	a := Sample(1.0)
	b := Sample(2.0).Merge(Sample(4.0))
	c := Sample(8.0)

	left := a.Merge(b).Merge(c)
	right := a.Merge(b.Merge(c))

	if left != right {
		t.Fatalf("merge not associative: %+v != %+v", left, right)
	}
	mean, err := left.Compute()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if math.Abs(mean-3.75) > 1e-12 {
		t.Fatalf("unexpected combined mean: %f", mean)
	}
	if left.Count != 4 {
		t.Fatalf("unexpected combined count: %d", left.Count)
	}
}

func TestEmptyAccumulatorIsExplicit(t *testing.T) {
	var empty Average
	if !empty.Empty() {
		t.Fatal("zero value should be empty")
	}
	if _, err := empty.Compute(); !errors.Is(err, ErrEmptyAccumulator) {
		t.Fatalf("expected empty accumulator error, got %v", err)
	}
	// merging with empty is the identity
	if got := empty.Merge(Sample(5)); got != Sample(5) {
		t.Fatalf("merge with empty changed the sample: %+v", got)
	}
}

func TestAddPrefix(t *testing.T) {
	out := AddPrefix(map[string]float64{"loss": 0.5}, "validation")
	if out["validation_loss"] != 0.5 {
		t.Fatalf("unexpected prefixed map: %v", out)
	}
}

func TestCSVWriterAppends(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := w.WriteScalars(1, map[string]float64{"train_loss": 0.25}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.WriteScalars(2, map[string]float64{"train_loss": 0.125, "validation_loss": 0.5}); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "metrics.csv"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "step" || rows[1][1] != "train_loss" {
		t.Fatalf("unexpected rows: %v", rows[:2])
	}
	// keys within one write are sorted
	if rows[2][1] != "train_loss" || rows[3][1] != "validation_loss" {
		t.Fatalf("unexpected key order: %v", rows[2:])
	}
}

func TestRunArtifactsAndIndex(t *testing.T) {
	base := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID: "run-a",
			Model: "MLPBlock",
		},
		TrainLossByEpoch: []float64{1, 0.5},
		FinalLosses:      map[string]float64{"validation": 0.4},
	}
	runDir, err := WriteRunArtifacts(base, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, f := range []string{"config.json", "loss_history.json"} {
		if _, err := os.Stat(filepath.Join(runDir, f)); err != nil {
			t.Fatalf("missing artifact %s: %v", f, err)
		}
	}

	if _, err := WriteRunArtifacts(base, RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id rejection")
	}

	cfg, ok, err := ReadRunConfig(base, "run-a")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !ok || cfg.Model != "MLPBlock" {
		t.Fatalf("unexpected config read back: ok=%v %+v", ok, cfg)
	}
	if _, ok, err := ReadRunConfig(base, "run-missing"); err != nil || ok {
		t.Fatalf("expected missing config: ok=%v err=%v", ok, err)
	}

	if err := AppendRunIndex(base, RunIndexEntry{RunID: "run-a", CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("append index: %v", err)
	}
	if err := AppendRunIndex(base, RunIndexEntry{RunID: "run-b", CreatedAtUTC: "2026-02-01T00:00:00Z"}); err != nil {
		t.Fatalf("append index: %v", err)
	}
	// upsert replaces in place
	if err := AppendRunIndex(base, RunIndexEntry{RunID: "run-a", CreatedAtUTC: "2026-03-01T00:00:00Z"}); err != nil {
		t.Fatalf("upsert index: %v", err)
	}

	entries, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 index entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-a" {
		t.Fatalf("expected newest entry first, got %s", entries[0].RunID)
	}

	out := t.TempDir()
	dst, err := ExportRunArtifacts(base, "run-a", out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "config.json")); err != nil {
		t.Fatalf("exported config missing: %v", err)
	}
}
