package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"genetics/internal/runner"
	"genetics/internal/storage"
)

const envPrefix = "GENETICS"

// runConfig is the merged view of defaults, config file, environment and
// explicit flags, in increasing precedence.
type runConfig struct {
	PopulationSize int     `mapstructure:"population_size"`
	Elitism        float64 `mapstructure:"elitism"`
	Generations    int     `mapstructure:"generations"`
	Genes          int     `mapstructure:"genes"`
	Target         float64 `mapstructure:"target"`
	MaxDelta       float64 `mapstructure:"max_delta"`
	Workers        int     `mapstructure:"workers"`
	Seed           int64   `mapstructure:"seed"`
	SnapshotEvery  int     `mapstructure:"snapshot_every"`
	FitnessGoal    float64 `mapstructure:"fitness_goal"`
	ContinueRunID  string  `mapstructure:"continue_run_id"`
	Store          string  `mapstructure:"store"`
	DBPath         string  `mapstructure:"db_path"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"pop":            "population_size",
	"elitism":        "elitism",
	"gens":           "generations",
	"genes":          "genes",
	"target":         "target",
	"max-delta":      "max_delta",
	"workers":        "workers",
	"seed":           "seed",
	"snapshot-every": "snapshot_every",
	"goal":           "fitness_goal",
	"continue":       "continue_run_id",
	"store":          "store",
	"db-path":        "db_path",
}

func setRunDefaults(v *viper.Viper) {
	v.SetDefault("population_size", 100)
	v.SetDefault("elitism", 0.2)
	v.SetDefault("generations", 100)
	v.SetDefault("genes", 5)
	v.SetDefault("target", 50.0)
	v.SetDefault("max_delta", 10.0)
	v.SetDefault("workers", 1)
	v.SetDefault("seed", 1)
	v.SetDefault("snapshot_every", 0)
	v.SetDefault("fitness_goal", 0.0)
	v.SetDefault("continue_run_id", "")
	v.SetDefault("store", storage.DefaultStoreKind())
	v.SetDefault("db_path", "genetics.db")
}

// loadRunConfig reads the optional config file at path, then applies
// GENETICS_* environment variables and the flags explicitly set on fs.
func loadRunConfig(path string, fs *pflag.FlagSet) (runConfig, error) {
	v := viper.New()
	setRunDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return runConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return runConfig{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg runConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return runConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c runConfig) request() runner.RunRequest {
	return runner.RunRequest{
		ContinueRunID:  c.ContinueRunID,
		PopulationSize: c.PopulationSize,
		Elitism:        c.Elitism,
		Generations:    c.Generations,
		Genes:          c.Genes,
		Target:         c.Target,
		MaxDelta:       c.MaxDelta,
		Workers:        c.Workers,
		Seed:           c.Seed,
		SnapshotEvery:  c.SnapshotEvery,
		FitnessGoal:    c.FitnessGoal,
	}
}
