//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStoreCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "lorenzgnn.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, epoch := range []int{1, 3, 2} {
		if err := store.SaveCheckpoint(ctx, testCheckpoint("run-1", epoch)); err != nil {
			t.Fatalf("save checkpoint %d: %v", epoch, err)
		}
	}

	cp, ok, err := store.GetCheckpoint(ctx, "run-1", 3)
	if err != nil {
		t.Fatalf("get checkpoint: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted checkpoint")
	}
	if cp.Params["hidden.w"][0][1] != 0.2 {
		t.Fatalf("unexpected params: %+v", cp.Params)
	}

	latest, ok, err := store.LatestCheckpoint(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("latest checkpoint: ok=%v err=%v", ok, err)
	}
	if latest.Epoch != 3 {
		t.Fatalf("expected epoch 3, got %d", latest.Epoch)
	}
}

func TestSQLiteStoreCheckpointUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "lorenzgnn.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	cp := testCheckpoint("run-1", 1)
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	cp.Step = 99
	if err := store.SaveCheckpoint(ctx, cp); err != nil {
		t.Fatalf("save checkpoint again: %v", err)
	}

	loaded, ok, err := store.GetCheckpoint(ctx, "run-1", 1)
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%v err=%v", ok, err)
	}
	if loaded.Step != 99 {
		t.Fatalf("expected upserted step 99, got %d", loaded.Step)
	}
}

func TestSQLiteStoreRunRecords(t *testing.T) {
	ctx := context.Background()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "lorenzgnn.db"))
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	records := []RunRecord{
		{VersionedRecord: CurrentVersion(), RunID: "run-a", Model: "mlp_block", CreatedAtUTC: "2026-08-23T10:00:00Z"},
		{VersionedRecord: CurrentVersion(), RunID: "run-b", Model: "graph_network", CreatedAtUTC: "2026-08-24T10:00:00Z"},
	}
	for _, rec := range records {
		if err := store.SaveRun(ctx, rec); err != nil {
			t.Fatalf("save run %s: %v", rec.RunID, err)
		}
	}

	rec, ok, err := store.GetRun(ctx, "run-b")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if rec.Model != "graph_network" {
		t.Fatalf("unexpected run record: %+v", rec)
	}

	listed, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(listed) != 2 || listed[0].RunID != "run-b" {
		t.Fatalf("unexpected run listing: %+v", listed)
	}
}
