package genetics

// Best returns up to n distinct phenotypes ranked by descending fitness.
// n below 1 is treated as 1.
func (e *Engine[P]) Best(n int) ([]P, error) {
	if n < 1 {
		n = 1
	}
	scored, err := e.ScoredPopulation()
	if err != nil {
		return nil, err
	}

	best := make([]P, 0, min(n, len(scored)))
	for _, item := range scored {
		if len(best) == n {
			break
		}
		if e.containsEqual(best, item.Phenotype) {
			continue
		}
		best = append(best, item.Phenotype)
	}
	return best, nil
}

// BestScore returns the fitness of the best phenotype.
func (e *Engine[P]) BestScore() (float64, error) {
	scored, err := e.ScoredPopulation()
	if err != nil {
		return 0, err
	}
	return scored[0].Score, nil
}

// Population returns a copy of the live population.
func (e *Engine[P]) Population() ([]P, error) {
	return copyAll(e.settings.Copy, e.settings.Population)
}

// ScoredPopulation returns copies of the population with their fitness,
// best first.
func (e *Engine[P]) ScoredPopulation() ([]Scored[P], error) {
	return e.evaluate(e.settings.Population)
}

// Config returns the current settings with a copied population.
func (e *Engine[P]) Config() (Settings[P], error) {
	population, err := copyAll(e.settings.Copy, e.settings.Population)
	if err != nil {
		return Settings[P]{}, err
	}
	settings := e.settings
	settings.Population = population
	return settings, nil
}

// Clone builds an independent engine from the current settings with opts
// applied on top. Only operator functions are shared.
func (e *Engine[P]) Clone(opts ...Option[P]) (*Engine[P], error) {
	settings, err := applyOptions(e.settings, opts)
	if err != nil {
		return nil, err
	}
	return newEngine(settings)
}

func (e *Engine[P]) containsEqual(list []P, phenotype P) bool {
	for _, item := range list {
		if e.settings.Equal(item, phenotype) {
			return true
		}
	}
	return false
}
