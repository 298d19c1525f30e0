// Package numbers provides a fixed-length real vector phenotype and the
// operators needed to evolve it toward a constant target value.
package numbers

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"

	"genetics/pkg/genetics"
)

type Phenotype struct {
	Numbers []float64 `json:"numbers"`
}

// Empty returns a phenotype of size zeros.
func Empty(size int) Phenotype {
	return Phenotype{Numbers: make([]float64, size)}
}

func Copy(p Phenotype) (Phenotype, error) {
	return Phenotype{Numbers: append([]float64(nil), p.Numbers...)}, nil
}

func Equal(a, b Phenotype) bool {
	return floats.Equal(a.Numbers, b.Numbers)
}

// Fitness scores a phenotype by the inverse Euclidean distance of its numbers
// to a vector filled with target. An exact match scores math.MaxFloat64.
func Fitness(target float64) genetics.FitnessFunc[Phenotype] {
	return func(p Phenotype) (float64, error) {
		if len(p.Numbers) == 0 {
			return 0, fmt.Errorf("phenotype has no numbers")
		}
		want := make([]float64, len(p.Numbers))
		for i := range want {
			want[i] = target
		}
		distance := floats.Distance(p.Numbers, want, 2)
		if distance == 0 {
			return math.MaxFloat64, nil
		}
		return 1 / distance, nil
	}
}

// Mutator perturbs one random gene by a uniform delta in [-MaxDelta, MaxDelta).
// It is safe for concurrent use.
type Mutator struct {
	MaxDelta float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMutator(seed int64, maxDelta float64) *Mutator {
	return &Mutator{MaxDelta: maxDelta, rng: rand.New(rand.NewSource(seed))}
}

func (m *Mutator) Mutate(_ context.Context, p Phenotype) (Phenotype, error) {
	if len(p.Numbers) == 0 {
		return p, nil
	}
	m.mu.Lock()
	gene := m.rng.Intn(len(p.Numbers))
	delta := (m.rng.Float64()*2 - 1) * m.MaxDelta
	m.mu.Unlock()

	p.Numbers[gene] += delta
	return p, nil
}

// Crossover walks both parents gene by gene and flips between copying and
// swapping with probability 1/len at each gene. It is safe for concurrent use.
type Crossover struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewCrossover(seed int64) *Crossover {
	return &Crossover{rng: rand.New(rand.NewSource(seed))}
}

func (c *Crossover) Cross(_ context.Context, a, b Phenotype) (Phenotype, Phenotype, error) {
	if len(a.Numbers) != len(b.Numbers) {
		return Phenotype{}, Phenotype{}, fmt.Errorf("parent length mismatch: %d != %d", len(a.Numbers), len(b.Numbers))
	}
	x, _ := Copy(a)
	y, _ := Copy(b)
	size := float64(len(x.Numbers))

	c.mu.Lock()
	defer c.mu.Unlock()
	swap := false
	for i := range x.Numbers {
		if c.rng.Float64()*size <= 1 {
			swap = !swap
		}
		if swap {
			x.Numbers[i], y.Numbers[i] = b.Numbers[i], a.Numbers[i]
		}
	}
	return x, y, nil
}

// Options returns the engine options that wire these operators together.
func Options(seed int64, target, maxDelta float64) []genetics.Option[Phenotype] {
	return []genetics.Option[Phenotype]{
		genetics.WithMutation(NewMutator(seed+1, maxDelta).Mutate),
		genetics.WithCrossover(NewCrossover(seed + 2).Cross),
		genetics.WithFitness(Fitness(target)),
		genetics.WithCopy(Copy),
		genetics.WithEqual(Equal),
		genetics.WithSeed[Phenotype](seed),
	}
}
