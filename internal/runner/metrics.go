package runner

import (
	"github.com/prometheus/client_golang/prometheus"

	"genetics/internal/model"
)

// Metrics exposes run progress as prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	generations *prometheus.CounterVec
	runs        *prometheus.CounterVec
	bestScore   *prometheus.GaugeVec
	meanScore   *prometheus.GaugeVec
	distinct    *prometheus.GaugeVec
}

// NewMetrics creates the run collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genetics_generations_total",
			Help: "Generations completed.",
		}, []string{"run_id"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "genetics_runs_total",
			Help: "Runs finished, by whether the fitness goal was reached.",
		}, []string{"goal_reached"}),
		bestScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genetics_best_score",
			Help: "Best fitness in the latest generation.",
		}, []string{"run_id"}),
		meanScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genetics_mean_score",
			Help: "Mean fitness in the latest generation.",
		}, []string{"run_id"}),
		distinct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "genetics_distinct_phenotypes",
			Help: "Distinct phenotypes in the latest generation.",
		}, []string{"run_id"}),
	}
	reg.MustRegister(m.generations, m.runs, m.bestScore, m.meanScore, m.distinct)
	return m
}

func (m *Metrics) observeGeneration(runID string, d model.GenerationDiagnostics) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"run_id": runID}
	m.generations.With(labels).Inc()
	m.bestScore.With(labels).Set(d.BestScore)
	m.meanScore.With(labels).Set(d.MeanScore)
	m.distinct.With(labels).Set(float64(d.Distinct))
}

func (m *Metrics) observeRun(goalReached bool) {
	if m == nil {
		return
	}
	label := "false"
	if goalReached {
		label = "true"
	}
	m.runs.With(prometheus.Labels{"goal_reached": label}).Inc()
}
