package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	"genetics/internal/storage"
)

func TestLoadRunConfigDefaults(t *testing.T) {
	cfg, err := loadRunConfig("", nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PopulationSize != 100 || cfg.Elitism != 0.2 || cfg.Generations != 100 || cfg.Store != storage.DefaultStoreKind() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRunConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	payload := []byte("population_size: 40\nelitism: 0.5\ngenerations: 7\ntarget: 12.5\nseed: 3\n")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GENETICS_GENERATIONS", "9")
	t.Setenv("GENETICS_SEED", "11")

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.Int("pop", 100, "")
	fs.Int64("seed", 1, "")
	if err := fs.Parse([]string{"--seed", "21"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadRunConfig(path, fs)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PopulationSize != 40 {
		t.Fatalf("expected file value for population size, got %d", cfg.PopulationSize)
	}
	if cfg.Elitism != 0.5 || cfg.Target != 12.5 {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
	if cfg.Generations != 9 {
		t.Fatalf("expected env override for generations, got %d", cfg.Generations)
	}
	if cfg.Seed != 21 {
		t.Fatalf("expected flag override for seed, got %d", cfg.Seed)
	}

	req := cfg.request()
	if req.PopulationSize != 40 || req.Seed != 21 || req.Generations != 9 {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestLoadRunConfigMissingFile(t *testing.T) {
	if _, err := loadRunConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
