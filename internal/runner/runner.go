// Package runner drives numeric evolution runs end to end: it builds an
// engine, advances it generation by generation, records diagnostics and
// population snapshots, and persists the outcome to a store.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"genetics/internal/model"
	"genetics/internal/numbers"
	"genetics/internal/stats"
	"genetics/internal/storage"
	"genetics/pkg/genetics"
)

const (
	defaultPopulationSize = 100
	defaultGenerations    = 100
	defaultGenes          = 5
	defaultTarget         = 50
	defaultMaxDelta       = 10
)

type Config struct {
	Store  storage.Store
	Logger logr.Logger
	// Metrics is optional.
	Metrics *Metrics
}

type RunRequest struct {
	// ContinueRunID seeds the population from the latest snapshot of an
	// earlier run instead of a single zero vector.
	ContinueRunID  string
	PopulationSize int
	Elitism        float64
	Generations    int
	Genes          int
	Target         float64
	MaxDelta       float64
	Workers        int
	Seed           int64
	// SnapshotEvery saves the population every N generations. The final
	// population is always saved.
	SnapshotEvery int
	// FitnessGoal stops the run once the best score reaches it. Zero disables
	// the check.
	FitnessGoal float64
}

type RunSummary struct {
	RunID       string
	Completed   int
	BestScore   float64
	Best        numbers.Phenotype
	GoalReached bool
	Diagnostics []model.GenerationDiagnostics
}

type Runner struct {
	store   storage.Store
	logger  logr.Logger
	metrics *Metrics
	now     func() time.Time
}

func New(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	return &Runner{
		store:   cfg.Store,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}, nil
}

func (r *Runner) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withRequestDefaults(req)
	if req.Elitism < 0 || req.Elitism > 1 {
		return RunSummary{}, fmt.Errorf("elitism must be in [0, 1], got %g", req.Elitism)
	}
	if req.SnapshotEvery < 0 {
		return RunSummary{}, fmt.Errorf("snapshot interval must be >= 0")
	}

	initial, err := r.initialPopulation(ctx, req)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	logger := r.logger.WithValues("run", runID)
	opts := append(numbers.Options(req.Seed, req.Target, req.MaxDelta),
		genetics.WithPopulation(initial),
		genetics.WithPopulationSize[numbers.Phenotype](req.PopulationSize),
		genetics.WithElitism[numbers.Phenotype](req.Elitism),
		genetics.WithWorkers[numbers.Phenotype](req.Workers),
		genetics.WithLogger[numbers.Phenotype](logger),
	)
	engine, err := genetics.New(opts...)
	if err != nil {
		return RunSummary{}, err
	}

	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		ParentRunID:     req.ContinueRunID,
		CreatedAt:       r.now().UTC(),
		PopulationSize:  req.PopulationSize,
		Elitism:         req.Elitism,
		Generations:     req.Generations,
		Genes:           req.Genes,
		Target:          req.Target,
		Seed:            req.Seed,
	}
	if err := r.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}
	logger.Info("run started", "populationSize", req.PopulationSize, "elitism", req.Elitism, "generations", req.Generations)

	summary := RunSummary{RunID: runID}
	var scored []genetics.Scored[numbers.Phenotype]
	lastSnapshot := 0
	for gen := 1; gen <= req.Generations; gen++ {
		if _, err := engine.Evolve(ctx, 1); err != nil {
			return summary, fmt.Errorf("run %s: %w", runID, err)
		}
		scored, err = engine.ScoredPopulation()
		if err != nil {
			return summary, fmt.Errorf("run %s: score generation %d: %w", runID, gen, err)
		}
		diag := stats.SummarizeGeneration(gen, scored, numbers.Equal)
		summary.Diagnostics = append(summary.Diagnostics, diag)
		summary.Completed = gen
		r.metrics.observeGeneration(runID, diag)
		logger.V(1).Info("generation scored", "generation", gen, "best", diag.BestScore, "mean", diag.MeanScore, "distinct", diag.Distinct)

		if req.SnapshotEvery > 0 && gen%req.SnapshotEvery == 0 {
			if err := r.saveSnapshot(ctx, runID, gen, scored); err != nil {
				return summary, err
			}
			lastSnapshot = gen
		}
		if req.FitnessGoal > 0 && diag.BestScore >= req.FitnessGoal {
			summary.GoalReached = true
			break
		}
	}

	if lastSnapshot != summary.Completed {
		if err := r.saveSnapshot(ctx, runID, summary.Completed, scored); err != nil {
			return summary, err
		}
	}
	if err := r.store.SaveGenerationDiagnostics(ctx, runID, summary.Diagnostics); err != nil {
		return summary, fmt.Errorf("save diagnostics %s: %w", runID, err)
	}

	summary.Best = scored[0].Phenotype
	summary.BestScore = scored[0].Score
	record.Completed = summary.Completed
	record.BestScore = summary.BestScore
	record.GoalReached = summary.GoalReached
	if err := r.store.SaveRun(ctx, record); err != nil {
		return summary, fmt.Errorf("save run %s: %w", runID, err)
	}
	r.metrics.observeRun(summary.GoalReached)
	logger.Info("run finished", "completed", summary.Completed, "best", summary.BestScore, "goalReached", summary.GoalReached)
	return summary, nil
}

// Best returns the top n distinct phenotypes of a run's latest snapshot with
// their scores.
func (r *Runner) Best(ctx context.Context, runID string, n int) ([]genetics.Scored[numbers.Phenotype], error) {
	run, ok, err := r.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	population, _, err := r.loadPopulation(ctx, runID)
	if err != nil {
		return nil, err
	}

	opts := append(numbers.Options(run.Seed, run.Target, 0),
		genetics.WithPopulation(population),
		genetics.WithPopulationSize[numbers.Phenotype](len(population)),
	)
	engine, err := genetics.New(opts...)
	if err != nil {
		return nil, err
	}
	best, err := engine.Best(n)
	if err != nil {
		return nil, err
	}

	fitness := numbers.Fitness(run.Target)
	out := make([]genetics.Scored[numbers.Phenotype], 0, len(best))
	for _, phenotype := range best {
		score, err := fitness(phenotype)
		if err != nil {
			return nil, err
		}
		out = append(out, genetics.Scored[numbers.Phenotype]{Phenotype: phenotype, Score: score})
	}
	return out, nil
}

func (r *Runner) initialPopulation(ctx context.Context, req RunRequest) ([]numbers.Phenotype, error) {
	if req.ContinueRunID == "" {
		return []numbers.Phenotype{numbers.Empty(req.Genes)}, nil
	}
	population, generation, err := r.loadPopulation(ctx, req.ContinueRunID)
	if err != nil {
		return nil, err
	}
	for i, p := range population {
		if len(p.Numbers) != req.Genes {
			return nil, fmt.Errorf("continued phenotype %d has %d genes, want %d", i, len(p.Numbers), req.Genes)
		}
	}
	r.logger.V(1).Info("continuing run", "parent", req.ContinueRunID, "generation", generation, "size", len(population))
	return population, nil
}

func (r *Runner) loadPopulation(ctx context.Context, runID string) ([]numbers.Phenotype, int, error) {
	snapshot, ok, err := r.store.LatestSnapshot(ctx, runID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("no snapshot for run: %s", runID)
	}
	var population []numbers.Phenotype
	if err := json.Unmarshal(snapshot.Phenotypes, &population); err != nil {
		return nil, 0, fmt.Errorf("decode snapshot %s@%d: %w", runID, snapshot.Generation, err)
	}
	if len(population) == 0 {
		return nil, 0, fmt.Errorf("empty snapshot for run: %s", runID)
	}
	return population, snapshot.Generation, nil
}

func (r *Runner) saveSnapshot(ctx context.Context, runID string, generation int, scored []genetics.Scored[numbers.Phenotype]) error {
	population := make([]numbers.Phenotype, len(scored))
	for i, item := range scored {
		population[i] = item.Phenotype
	}
	payload, err := json.Marshal(population)
	if err != nil {
		return err
	}
	bestScore := 0.0
	if len(scored) > 0 {
		bestScore = scored[0].Score
	}
	err = r.store.SaveSnapshot(ctx, model.Snapshot{
		VersionedRecord: storage.CurrentVersion(),
		RunID:           runID,
		Generation:      generation,
		BestScore:       bestScore,
		Phenotypes:      payload,
	})
	if err != nil {
		return fmt.Errorf("save snapshot %s@%d: %w", runID, generation, err)
	}
	return nil
}

func withRequestDefaults(req RunRequest) RunRequest {
	if req.PopulationSize <= 0 {
		req.PopulationSize = defaultPopulationSize
	}
	if req.Generations <= 0 {
		req.Generations = defaultGenerations
	}
	if req.Genes <= 0 {
		req.Genes = defaultGenes
	}
	if req.Target == 0 {
		req.Target = defaultTarget
	}
	if req.MaxDelta <= 0 {
		req.MaxDelta = defaultMaxDelta
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	return req
}
