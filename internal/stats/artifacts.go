package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"genetics/internal/model"
)

// TopPhenotype is one ranked entry of a run's final population.
type TopPhenotype struct {
	Rank      int     `json:"rank"`
	Score     float64 `json:"score"`
	Phenotype any     `json:"phenotype"`
}

type RunArtifacts struct {
	Run                   model.RunRecord               `json:"run"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics"`
	TopPhenotypes         []TopPhenotype                `json:"top_phenotypes"`
}

// BestByGeneration extracts the best score of every recorded generation.
func (a RunArtifacts) BestByGeneration() []float64 {
	out := make([]float64, len(a.GenerationDiagnostics))
	for i, d := range a.GenerationDiagnostics {
		out[i] = d.BestScore
	}
	return out
}

// WriteRunArtifacts writes a run's record, diagnostics, best-score series and
// top phenotypes under baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"best_by_generation": artifacts.BestByGeneration(),
		"final_best_score":   artifacts.Run.BestScore,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_phenotypes.json"), artifacts.TopPhenotypes); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	return runDir, nil
}

// WriteFitnessSeries writes fitness_series.csv with one row per generation.
func WriteFitnessSeries(runDir string, diagnostics []model.GenerationDiagnostics) (err error) {
	file, err := os.Create(filepath.Join(runDir, "fitness_series.csv"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_score", "mean_score", "min_score", "stddev_score", "distinct"}); err != nil {
		return err
	}
	for _, d := range diagnostics {
		if err := writer.Write([]string{
			strconv.Itoa(d.Generation),
			formatFloat(d.BestScore),
			formatFloat(d.MeanScore),
			formatFloat(d.MinScore),
			formatFloat(d.StdDevScore),
			strconv.Itoa(d.Distinct),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadFitnessSeries reads the best-score column back from fitness_series.csv.
func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "fitness_series.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

// ReadRun reads run.json from a run's artifact directory.
func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
