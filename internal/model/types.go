package model

import (
	"encoding/json"
	"time"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord describes one evolution run and its outcome.
type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	ParentRunID    string    `json:"parent_run_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PopulationSize int       `json:"population_size"`
	Elitism        float64   `json:"elitism"`
	Generations    int       `json:"generations"`
	Completed      int       `json:"completed"`
	Genes          int       `json:"genes"`
	Target         float64   `json:"target"`
	Seed           int64     `json:"seed"`
	BestScore      float64   `json:"best_score"`
	GoalReached    bool      `json:"goal_reached"`
}

// Snapshot is a population captured after a given generation. Phenotypes is
// the JSON encoding of the population, best first.
type Snapshot struct {
	VersionedRecord
	RunID      string          `json:"run_id"`
	Generation int             `json:"generation"`
	BestScore  float64         `json:"best_score"`
	Phenotypes json.RawMessage `json:"phenotypes"`
}

type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	PopulationSize int     `json:"population_size"`
	BestScore      float64 `json:"best_score"`
	MeanScore      float64 `json:"mean_score"`
	MinScore       float64 `json:"min_score"`
	StdDevScore    float64 `json:"stddev_score"`
	Distinct       int     `json:"distinct"`
}
