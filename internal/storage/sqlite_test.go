//go:build sqlite

package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"genetics/internal/model"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "genetics.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}
	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	for _, generation := range []int{1, 3, 2} {
		snapshot := model.Snapshot{
			VersionedRecord: CurrentVersion(),
			RunID:           "run-a",
			Generation:      generation,
			Phenotypes:      json.RawMessage(`[{"numbers":[0]}]`),
		}
		if err := store.SaveSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}
	latest, ok, err := store.LatestSnapshot(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("latest snapshot: ok=%t err=%v", ok, err)
	}
	if latest.Generation != 3 {
		t.Fatalf("unexpected latest generation: %d", latest.Generation)
	}

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestScore: 0.5}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-a", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loaded, ok, err := store.GetGenerationDiagnostics(ctx, "run-a")
	if err != nil || !ok || len(loaded) != 1 || loaded[0].BestScore != 0.5 {
		t.Fatalf("unexpected diagnostics: ok=%t err=%v loaded=%+v", ok, err, loaded)
	}
}

func TestNewStoreSQLite(t *testing.T) {
	store, err := NewStore(KindSQLite, filepath.Join(t.TempDir(), "genetics.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := CloseIfSupported(store); err != nil {
		t.Fatalf("close: %v", err)
	}
}
