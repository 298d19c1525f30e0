package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"genetics/internal/runner"
	"genetics/internal/stats"
	"genetics/internal/storage"
)

func main() {
	defer klog.Flush()
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runRun(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	configPath := fs.String("config", "", "optional YAML/JSON run config file")
	fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	fs.String("db-path", "genetics.db", "sqlite database path")
	fs.Int("pop", 100, "population size")
	fs.Float64("elitism", 0.2, "fraction of the population kept each generation")
	fs.Int("gens", 100, "generations to run")
	fs.Int("genes", 5, "numbers per phenotype")
	fs.Float64("target", 50, "value every number is evolved toward")
	fs.Float64("max-delta", 10, "largest single-gene mutation")
	fs.Int("workers", 1, "concurrent operator invocations per generation")
	fs.Int64("seed", 1, "random seed")
	fs.Int("snapshot-every", 0, "save the population every N generations (0 = final only)")
	fs.Float64("goal", 0, "stop once the best score reaches this value (0 = off)")
	fs.String("continue", "", "continue from the latest snapshot of this run id")
	metricsFile := fs.String("metrics-file", "", "write prometheus metrics in text format to this file after the run")
	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadRunConfig(*configPath, fs)
	if err != nil {
		return err
	}

	return withStore(ctx, cfg.Store, cfg.DBPath, func(store storage.Store) error {
		reg := prometheus.NewRegistry()
		r, err := runner.New(runner.Config{
			Store:   store,
			Logger:  newLogger(),
			Metrics: runner.NewMetrics(reg),
		})
		if err != nil {
			return err
		}
		summary, err := r.Run(ctx, cfg.request())
		if err != nil {
			return err
		}
		if *metricsFile != "" {
			if err := prometheus.WriteToTextfile(*metricsFile, reg); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
		}
		fmt.Printf("run_id=%s generations=%s best_score=%.6f goal_reached=%t\n",
			summary.RunID,
			humanize.Comma(int64(summary.Completed)),
			summary.BestScore,
			summary.GoalReached,
		)
		fmt.Printf("best=%s\n", formatNumbers(summary.Best.Numbers))
		return nil
	})
}

func runRuns(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("runs", pflag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "genetics.db", "sqlite database path")
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	return withStore(ctx, *storeKind, *dbPath, func(store storage.Store) error {
		runs, err := store.ListRuns(ctx, *limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs found")
			return nil
		}
		for _, item := range runs {
			fmt.Printf("%s created=%s pop=%s generations=%s/%s best=%.6f parent=%s\n",
				item.ID,
				humanize.Time(item.CreatedAt),
				humanize.Comma(int64(item.PopulationSize)),
				humanize.Comma(int64(item.Completed)),
				humanize.Comma(int64(item.Generations)),
				item.BestScore,
				orDash(item.ParentRunID),
			)
		}
		return nil
	})
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("diagnostics", pflag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "genetics.db", "sqlite database path")
	runID := fs.String("run-id", "", "run id")
	limit := fs.Int("limit", 0, "show only the last N generations (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("run-id is required")
	}

	return withStore(ctx, *storeKind, *dbPath, func(store storage.Store) error {
		diagnostics, ok, err := store.GetGenerationDiagnostics(ctx, *runID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("diagnostics not found for run: %s", *runID)
		}
		if *limit > 0 && len(diagnostics) > *limit {
			diagnostics = diagnostics[len(diagnostics)-*limit:]
		}
		for _, d := range diagnostics {
			fmt.Printf("gen=%s best=%.6f mean=%.6f min=%.6f stddev=%.6f distinct=%d/%d\n",
				humanize.Comma(int64(d.Generation)),
				d.BestScore,
				d.MeanScore,
				d.MinScore,
				d.StdDevScore,
				d.Distinct,
				d.PopulationSize,
			)
		}
		return nil
	})
}

func runBest(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("best", pflag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "genetics.db", "sqlite database path")
	runID := fs.String("run-id", "", "run id")
	n := fs.Int("n", 1, "number of distinct phenotypes to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("run-id is required")
	}

	return withStore(ctx, *storeKind, *dbPath, func(store storage.Store) error {
		r, err := runner.New(runner.Config{Store: store, Logger: newLogger()})
		if err != nil {
			return err
		}
		best, err := r.Best(ctx, *runID, *n)
		if err != nil {
			return err
		}
		for i, item := range best {
			fmt.Printf("%d score=%.6f numbers=%s\n", i+1, item.Score, formatNumbers(item.Phenotype.Numbers))
		}
		return nil
	})
}

func runExport(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("export", pflag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "genetics.db", "sqlite database path")
	runID := fs.String("run-id", "", "run id")
	outDir := fs.String("out", "exports", "output directory")
	top := fs.Int("top", 5, "number of distinct phenotypes to export")
	force := fs.Bool("force", false, "rewrite artifacts that are already up to date")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("run-id is required")
	}

	return withStore(ctx, *storeKind, *dbPath, func(store storage.Store) error {
		dir, written, err := exportRun(ctx, store, *runID, *outDir, *top, *force)
		if err != nil {
			return err
		}
		if !written {
			fmt.Printf("run %s already exported to %s\n", *runID, dir)
			return nil
		}
		fmt.Printf("exported run %s to %s\n", *runID, dir)
		return nil
	})
}

// exportRun writes a run's artifacts under outDir. Artifacts already on disk
// for the same completed generation and best score are left alone unless
// force is set; written reports whether anything was rewritten.
func exportRun(ctx context.Context, store storage.Store, runID, outDir string, top int, force bool) (dir string, written bool, err error) {
	run, ok, err := store.GetRun(ctx, runID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, fmt.Errorf("run not found: %s", runID)
	}
	if !force {
		existing, ok, err := stats.ReadRun(outDir, runID)
		if err != nil {
			return "", false, fmt.Errorf("read existing export: %w", err)
		}
		if ok && existing.Completed == run.Completed && existing.BestScore == run.BestScore {
			return filepath.Join(outDir, runID), false, nil
		}
	}
	diagnostics, _, err := store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return "", false, err
	}
	r, err := runner.New(runner.Config{Store: store, Logger: newLogger()})
	if err != nil {
		return "", false, err
	}
	best, err := r.Best(ctx, runID, top)
	if err != nil {
		return "", false, err
	}

	artifacts := stats.RunArtifacts{Run: run, GenerationDiagnostics: diagnostics}
	for i, item := range best {
		artifacts.TopPhenotypes = append(artifacts.TopPhenotypes, stats.TopPhenotype{
			Rank:      i + 1,
			Score:     item.Score,
			Phenotype: item.Phenotype,
		})
	}
	dir, err = stats.WriteRunArtifacts(outDir, artifacts)
	if err != nil {
		return "", false, err
	}
	return dir, true, nil
}

func withStore(ctx context.Context, kind, dbPath string, fn func(storage.Store) error) error {
	store, err := storage.NewStore(kind, dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}
	return fn(store)
}

func newLogger() logr.Logger {
	return klog.NewKlogr().WithName("geneticsctl")
}

func formatNumbers(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = humanize.FtoaWithDigits(v, 4)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: geneticsctl <run|runs|diagnostics|best|export> [flags]", msg)
}
