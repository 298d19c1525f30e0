package storage

import (
	"context"

	"genetics/internal/model"
)

// Store defines persistence for runs, population snapshots and per-generation
// diagnostics. Lookups report absence through the boolean result.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first; limit <= 0 means all.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveSnapshot(ctx context.Context, snapshot model.Snapshot) error
	GetSnapshot(ctx context.Context, runID string, generation int) (model.Snapshot, bool, error)
	LatestSnapshot(ctx context.Context, runID string) (model.Snapshot, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
}
