package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"genetics/internal/model"
)

func newInitializedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return store
}

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := model.RunRecord{
			VersionedRecord: CurrentVersion(),
			ID:              id,
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
			PopulationSize:  10,
			BestScore:       float64(i),
		}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}

	run, ok, err := store.GetRun(ctx, "run-b")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || run.BestScore != 1 {
		t.Fatalf("unexpected run: ok=%t run=%+v", ok, run)
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("expected newest runs first: %+v", runs)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run: ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreSnapshots(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	for _, generation := range []int{5, 10, 2} {
		snapshot := model.Snapshot{
			VersionedRecord: CurrentVersion(),
			RunID:           "run-1",
			Generation:      generation,
			Phenotypes:      json.RawMessage(`[{"numbers":[1,2]}]`),
		}
		if err := store.SaveSnapshot(ctx, snapshot); err != nil {
			t.Fatalf("save snapshot: %v", err)
		}
	}

	latest, ok, err := store.LatestSnapshot(ctx, "run-1")
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if !ok || latest.Generation != 10 {
		t.Fatalf("unexpected latest snapshot: ok=%t generation=%d", ok, latest.Generation)
	}

	latest.Phenotypes[0] = 'X'
	again, ok, err := store.GetSnapshot(ctx, "run-1", 10)
	if err != nil || !ok {
		t.Fatalf("get snapshot: ok=%t err=%v", ok, err)
	}
	if string(again.Phenotypes) != `[{"numbers":[1,2]}]` {
		t.Fatalf("snapshot payload aliased: %s", again.Phenotypes)
	}

	if _, ok, err := store.LatestSnapshot(ctx, "run-2"); err != nil || ok {
		t.Fatalf("expected no snapshot: ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreGenerationDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newInitializedMemoryStore(t)

	input := []model.GenerationDiagnostics{
		{Generation: 1, BestScore: 0.8, MeanScore: 0.6, MinScore: 0.2, Distinct: 2},
		{Generation: 2, BestScore: 0.9, MeanScore: 0.7, MinScore: 0.3, Distinct: 3},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	input[0].BestScore = -1

	output, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted diagnostics")
	}
	if len(output) != 2 || output[0].BestScore != 0.8 || output[1].Distinct != 3 {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); err == nil {
		t.Fatal("expected error before init")
	}
}
