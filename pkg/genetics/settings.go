package genetics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const (
	DefaultPopulationSize = 100
	DefaultElitism        = 0.0
	DefaultWorkers        = 1
)

// ErrConfig is wrapped by every settings validation failure.
var ErrConfig = errors.New("invalid genetics config")

// MutationFunc returns a mutated phenotype. It receives a copy it may modify.
type MutationFunc[P any] func(ctx context.Context, phenotype P) (P, error)

// CrossoverFunc recombines two phenotypes into two children. The engine only
// keeps the first child.
type CrossoverFunc[P any] func(ctx context.Context, a, b P) (P, P, error)

// FitnessFunc scores a phenotype. Higher is better.
type FitnessFunc[P any] func(phenotype P) (float64, error)

// ComparatorFunc reports whether a is preferred over b. When set it replaces
// fitness comparison for ranking.
type ComparatorFunc[P any] func(a, b P) bool

// CopyFunc returns a value that shares no mutable state with phenotype.
type CopyFunc[P any] func(phenotype P) (P, error)

// EqualFunc reports whether two phenotypes are equal by value.
type EqualFunc[P any] func(a, b P) bool

// Settings is the full engine configuration. Function fields are held by
// reference; Population is owned by the engine.
type Settings[P any] struct {
	Mutation       MutationFunc[P]
	Crossover      CrossoverFunc[P]
	Fitness        FitnessFunc[P]
	Comparator     ComparatorFunc[P]
	Copy           CopyFunc[P]
	Equal          EqualFunc[P]
	Population     []P
	PopulationSize int
	// Elitism is the fraction of PopulationSize carried over unchanged each
	// generation. The derived count is clamped to the population length.
	Elitism float64
	Workers int
	Seed    int64
	Logger  logr.Logger
}

// Option overlays one field onto the current settings.
type Option[P any] func(*Settings[P])

func WithMutation[P any](fn MutationFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Mutation = fn }
}

func WithCrossover[P any](fn CrossoverFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Crossover = fn }
}

func WithFitness[P any](fn FitnessFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Fitness = fn }
}

// WithComparator sets the pairwise preference oracle. A nil comparator
// restores fitness-based ranking.
func WithComparator[P any](fn ComparatorFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Comparator = fn }
}

func WithCopy[P any](fn CopyFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Copy = fn }
}

func WithEqual[P any](fn EqualFunc[P]) Option[P] {
	return func(s *Settings[P]) { s.Equal = fn }
}

// WithPopulation replaces the population. The engine copies the phenotypes
// before using them.
func WithPopulation[P any](population []P) Option[P] {
	return func(s *Settings[P]) { s.Population = append([]P(nil), population...) }
}

func WithPopulationSize[P any](size int) Option[P] {
	return func(s *Settings[P]) { s.PopulationSize = size }
}

func WithElitism[P any](elitism float64) Option[P] {
	return func(s *Settings[P]) { s.Elitism = elitism }
}

// WithWorkers bounds how many replacement operators run at once within a
// generation.
func WithWorkers[P any](workers int) Option[P] {
	return func(s *Settings[P]) { s.Workers = workers }
}

func WithSeed[P any](seed int64) Option[P] {
	return func(s *Settings[P]) { s.Seed = seed }
}

func WithLogger[P any](logger logr.Logger) Option[P] {
	return func(s *Settings[P]) { s.Logger = logger }
}

// WithSettings replaces every field at once, typically with a value obtained
// from Engine.Config.
func WithSettings[P any](settings Settings[P]) Option[P] {
	return func(s *Settings[P]) {
		*s = settings
		s.Population = append([]P(nil), settings.Population...)
	}
}

func defaultSettings[P any]() Settings[P] {
	return Settings[P]{
		Mutation: func(_ context.Context, phenotype P) (P, error) {
			return phenotype, nil
		},
		Crossover: func(_ context.Context, a, b P) (P, P, error) {
			return a, b, nil
		},
		Fitness: func(P) (float64, error) {
			return 0, nil
		},
		Copy:           jsonCopy[P],
		Equal:          deepEqual[P],
		PopulationSize: DefaultPopulationSize,
		Elitism:        DefaultElitism,
		Workers:        DefaultWorkers,
		Seed:           time.Now().UnixNano(),
		Logger:         logr.Discard(),
	}
}

// applyOptions overlays opts onto a copy of base. base is never modified.
func applyOptions[P any](base Settings[P], opts []Option[P]) (Settings[P], error) {
	next := base
	next.Population = append([]P(nil), base.Population...)
	for _, opt := range opts {
		if opt != nil {
			opt(&next)
		}
	}
	if err := next.validate(); err != nil {
		return Settings[P]{}, err
	}
	return next, nil
}

func (s Settings[P]) validate() error {
	switch {
	case len(s.Population) == 0:
		return fmt.Errorf("%w: population must contain at least 1 phenotype", ErrConfig)
	case s.PopulationSize <= 0:
		return fmt.Errorf("%w: population size must be > 0, got %d", ErrConfig, s.PopulationSize)
	case s.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0, got %d", ErrConfig, s.Workers)
	case s.Mutation == nil:
		return fmt.Errorf("%w: mutation function is required", ErrConfig)
	case s.Crossover == nil:
		return fmt.Errorf("%w: crossover function is required", ErrConfig)
	case s.Fitness == nil:
		return fmt.Errorf("%w: fitness function is required", ErrConfig)
	case s.Copy == nil:
		return fmt.Errorf("%w: copy function is required", ErrConfig)
	case s.Equal == nil:
		return fmt.Errorf("%w: equal function is required", ErrConfig)
	}
	return nil
}

// jsonCopy copies phenotypes whose state is exported and JSON-representable.
// A phenotype that comes back different (unexported fields, custom
// marshalers that drop data) is an error; such types need WithCopy.
func jsonCopy[P any](phenotype P) (P, error) {
	var out P
	data, err := json.Marshal(phenotype)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	if !cmp.Equal(phenotype, out, exportAll, cmpopts.EquateEmpty(), cmpopts.EquateNaNs()) {
		var zero P
		return zero, fmt.Errorf("%T does not survive a JSON round trip; use WithCopy", phenotype)
	}
	return out, nil
}

var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

func deepEqual[P any](a, b P) bool {
	return cmp.Equal(a, b, exportAll)
}
