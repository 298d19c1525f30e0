package stats

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"genetics/internal/model"
	"genetics/pkg/genetics"
)

// SummarizeGeneration reduces a scored population (best first) to fitness
// diagnostics. equal decides which phenotypes count as duplicates.
func SummarizeGeneration[P any](generation int, scored []genetics.Scored[P], equal genetics.EqualFunc[P]) model.GenerationDiagnostics {
	if len(scored) == 0 {
		return model.GenerationDiagnostics{Generation: generation}
	}

	scores := make([]float64, len(scored))
	for i, item := range scored {
		scores[i] = item.Score
	}

	stdDev := 0.0
	if len(scores) > 1 {
		stdDev = stat.StdDev(scores, nil)
	}

	return model.GenerationDiagnostics{
		Generation:     generation,
		PopulationSize: len(scored),
		BestScore:      floats.Max(scores),
		MeanScore:      stat.Mean(scores, nil),
		MinScore:       floats.Min(scores),
		StdDevScore:    stdDev,
		Distinct:       countDistinct(scored, equal),
	}
}

func countDistinct[P any](scored []genetics.Scored[P], equal genetics.EqualFunc[P]) int {
	if equal == nil {
		return len(scored)
	}
	seen := make([]P, 0, len(scored))
	for _, item := range scored {
		duplicate := false
		for _, other := range seen {
			if equal(item.Phenotype, other) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			seen = append(seen, item.Phenotype)
		}
	}
	return len(seen)
}
