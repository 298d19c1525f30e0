// Package genetics is a representation-agnostic genetic algorithm engine.
//
// The engine owns a population of caller-defined phenotypes and advances it
// one generation at a time: the best members by fitness (or by a caller
// comparator) are kept as elites, and every other slot is replaced by a
// mutation or crossover of its occupant. Phenotypes handed to or returned from
// the engine are always copies.
package genetics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// Engine evolves a population. It is not safe for concurrent use; callers
// must serialise Evolve and the accessors on a single engine.
type Engine[P any] struct {
	settings   Settings[P]
	rng        *rand.Rand
	generation int
}

// Scored pairs a phenotype copy with its fitness.
type Scored[P any] struct {
	Phenotype P
	Score     float64
}

// New builds an engine from opts layered over the defaults.
func New[P any](opts ...Option[P]) (*Engine[P], error) {
	settings, err := applyOptions(defaultSettings[P](), opts)
	if err != nil {
		return nil, err
	}
	return newEngine(settings)
}

func newEngine[P any](settings Settings[P]) (*Engine[P], error) {
	population, err := copyAll(settings.Copy, settings.Population)
	if err != nil {
		return nil, err
	}
	settings.Population = population
	return &Engine[P]{
		settings: settings,
		rng:      rand.New(rand.NewSource(settings.Seed)),
	}, nil
}

// Evolve merges opts into the current settings, tops the population up to
// the configured size and then runs the given number of generations. Zero
// generations only tops the population up; a negative count runs one
// generation. It returns the engine so calls can be chained.
//
// An operator error aborts the generation in flight; generations completed
// earlier in the same call stay installed.
func (e *Engine[P]) Evolve(ctx context.Context, generations int, opts ...Option[P]) (*Engine[P], error) {
	if len(opts) > 0 {
		if err := e.merge(opts); err != nil {
			return e, err
		}
	}
	if generations < 0 {
		generations = 1
	}

	if err := e.populate(ctx); err != nil {
		return e, err
	}
	for i := 0; i < generations; i++ {
		if err := ctx.Err(); err != nil {
			return e, err
		}
		if err := e.compete(ctx); err != nil {
			return e, fmt.Errorf("generation %d: %w", e.generation+1, err)
		}
		e.generation++
	}
	return e, nil
}

// Generation reports how many generations this engine has completed.
func (e *Engine[P]) Generation() int {
	return e.generation
}

func (e *Engine[P]) merge(opts []Option[P]) error {
	settings, err := applyOptions(e.settings, opts)
	if err != nil {
		return err
	}
	population, err := copyAll(settings.Copy, settings.Population)
	if err != nil {
		return err
	}
	settings.Population = population
	if settings.Seed != e.settings.Seed {
		e.rng = rand.New(rand.NewSource(settings.Seed))
	}
	e.settings = settings
	e.settings.Logger.V(2).Info("merged settings",
		"populationSize", settings.PopulationSize,
		"elitism", settings.Elitism,
		"workers", settings.Workers,
	)
	return nil
}

// populate pads the population to PopulationSize with mutated copies of
// members sampled from the population as it stood on entry.
func (e *Engine[P]) populate(ctx context.Context) error {
	snapshot := e.settings.Population
	deficit := e.settings.PopulationSize - len(snapshot)
	if deficit <= 0 {
		return nil
	}

	plan := make([]replacement[P], deficit)
	for i := range plan {
		plan[i] = replacement[P]{phenotype: snapshot[e.rng.Intn(len(snapshot))]}
	}
	extra, err := e.replace(ctx, plan)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}

	next := make([]P, 0, len(snapshot)+len(extra))
	next = append(next, snapshot...)
	next = append(next, extra...)
	e.settings.Population = next
	e.settings.Logger.V(1).Info("populated", "added", deficit, "size", len(next))
	return nil
}

// compete advances the population by one generation.
func (e *Engine[P]) compete(ctx context.Context) error {
	population := e.settings.Population
	eliteCount := e.eliteCount(len(population))
	if eliteCount == len(population) {
		e.settings.Logger.V(1).Info("generation complete", "generation", e.generation+1, "elites", eliteCount, "replaced", 0)
		return nil
	}

	working := append([]P(nil), population...)
	if eliteCount > 0 {
		ranked, err := e.rank(population)
		if err != nil {
			return err
		}
		working = ranked
	}

	region := working[eliteCount:]
	e.rng.Shuffle(len(region), func(i, j int) {
		region[i], region[j] = region[j], region[i]
	})

	plan := make([]replacement[P], len(region))
	for i, phenotype := range region {
		item := replacement[P]{phenotype: phenotype}
		if e.rng.Float64() >= 0.5 {
			item.crossover = true
			item.mate = working[e.rng.Intn(len(working))]
		}
		plan[i] = item
	}

	children, err := e.replace(ctx, plan)
	if err != nil {
		return err
	}

	next := make([]P, 0, len(working))
	next = append(next, working[:eliteCount]...)
	next = append(next, children...)
	e.settings.Population = next
	e.settings.Logger.V(1).Info("generation complete", "generation", e.generation+1, "elites", eliteCount, "replaced", len(children))
	return nil
}

func (e *Engine[P]) eliteCount(size int) int {
	elitism := e.settings.Elitism
	if math.IsNaN(elitism) {
		return 0
	}
	count := math.Round(float64(e.settings.PopulationSize) * elitism)
	if count <= 0 {
		return 0
	}
	if count >= float64(size) {
		return size
	}
	return int(count)
}

// rank returns copies of population ordered best first. Ties keep their
// relative order.
func (e *Engine[P]) rank(population []P) ([]P, error) {
	if beats := e.settings.Comparator; beats != nil {
		ranked, err := copyAll(e.settings.Copy, population)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return beats(ranked[i], ranked[j]) && !beats(ranked[j], ranked[i])
		})
		return ranked, nil
	}

	scored, err := e.evaluate(population)
	if err != nil {
		return nil, err
	}
	ranked := make([]P, len(scored))
	for i, item := range scored {
		ranked[i] = item.Phenotype
	}
	return ranked, nil
}

// evaluate scores copies of population and returns them best first.
func (e *Engine[P]) evaluate(population []P) ([]Scored[P], error) {
	scored := make([]Scored[P], len(population))
	for i, phenotype := range population {
		copied, err := e.settings.Copy(phenotype)
		if err != nil {
			return nil, fmt.Errorf("copy: %w", err)
		}
		score, err := e.settings.Fitness(copied)
		if err != nil {
			return nil, fmt.Errorf("fitness: %w", err)
		}
		scored[i] = Scored[P]{Phenotype: copied, Score: score}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored, nil
}

type replacement[P any] struct {
	phenotype P
	crossover bool
	mate      P
}

// replace runs one operator per plan entry and returns the results in plan
// order. Entries run on up to Workers goroutines; the first error cancels
// the entries that have not started.
func (e *Engine[P]) replace(ctx context.Context, plan []replacement[P]) ([]P, error) {
	out := make([]P, len(plan))
	workers := min(e.settings.Workers, len(plan))
	if workers <= 1 {
		for i, item := range plan {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			child, err := e.apply(ctx, item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	}

	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, item := range plan {
		i, item := i, item
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			child, err := e.apply(ctx, item)
			if err != nil {
				return err
			}
			out[i] = child
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine[P]) apply(ctx context.Context, item replacement[P]) (P, error) {
	if item.crossover {
		return e.crossover(ctx, item.phenotype, item.mate)
	}
	return e.mutate(ctx, item.phenotype)
}

func (e *Engine[P]) mutate(ctx context.Context, phenotype P) (P, error) {
	var zero P
	copied, err := e.settings.Copy(phenotype)
	if err != nil {
		return zero, fmt.Errorf("copy: %w", err)
	}
	mutated, err := e.settings.Mutation(ctx, copied)
	if err != nil {
		return zero, fmt.Errorf("mutate: %w", err)
	}
	return mutated, nil
}

func (e *Engine[P]) crossover(ctx context.Context, phenotype, mate P) (P, error) {
	var zero P
	a, err := e.settings.Copy(phenotype)
	if err != nil {
		return zero, fmt.Errorf("copy: %w", err)
	}
	b, err := e.settings.Copy(mate)
	if err != nil {
		return zero, fmt.Errorf("copy: %w", err)
	}
	child, _, err := e.settings.Crossover(ctx, a, b)
	if err != nil {
		return zero, fmt.Errorf("crossover: %w", err)
	}
	return child, nil
}

func copyAll[P any](copyFn CopyFunc[P], population []P) ([]P, error) {
	out := make([]P, len(population))
	for i, phenotype := range population {
		copied, err := copyFn(phenotype)
		if err != nil {
			return nil, fmt.Errorf("copy phenotype %d: %w", i, err)
		}
		out[i] = copied
	}
	return out, nil
}
