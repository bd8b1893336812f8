package experiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"potability/internal/config"
	"potability/internal/data"
	"potability/internal/jobs"
	"potability/internal/models"
	"potability/internal/persistence"
)

const syntheticRows = 90

// writeSynthetic writes a water quality CSV where potability follows ph and
// sulfate. Every 9th row lacks Trihalomethanes, every 7th lacks ph and every
// 5th lacks Sulfate.
func writeSynthetic(t *testing.T, dir string) (path string, kept int) {
	t.Helper()
	r := rand.New(rand.NewSource(3))

	var b strings.Builder
	b.WriteString(strings.Join(append(append([]string{}, data.PredictorColumns...), data.ColumnPotability), ","))
	b.WriteString("\n")
	for i := 0; i < syntheticRows; i++ {
		label := i % 3 % 2
		ph := 6 + 2*float64(label) + r.NormFloat64()*0.4
		sulfate := 300 + 60*float64(label) + r.NormFloat64()*15
		cells := []string{
			fmt.Sprintf("%.4f", ph),
			fmt.Sprintf("%.3f", 190+r.NormFloat64()*30),
			fmt.Sprintf("%.2f", 20000+r.NormFloat64()*5000),
			fmt.Sprintf("%.4f", 7+r.NormFloat64()),
			fmt.Sprintf("%.3f", sulfate),
			fmt.Sprintf("%.3f", 420+r.NormFloat64()*80),
			fmt.Sprintf("%.4f", 14+r.NormFloat64()*3),
			fmt.Sprintf("%.4f", 66+r.NormFloat64()*15),
			fmt.Sprintf("%.4f", 4+r.NormFloat64()*0.7),
			fmt.Sprint(label),
		}
		if i%9 == 4 {
			cells[7] = ""
		} else {
			kept++
		}
		if i%7 == 2 {
			cells[0] = ""
		}
		if i%5 == 1 {
			cells[4] = ""
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteString("\n")
	}

	path = filepath.Join(dir, "water_potability.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path, kept
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	path, _ := writeSynthetic(t, dir)

	cfg := config.Default()
	cfg.Source.Path = path
	cfg.CV.Folds = 3
	cfg.CV.Workers = 2
	cfg.DecisionTree.Criterion = []string{"gini", "entropy"}
	cfg.DecisionTree.Splitter = []string{"best"}
	cfg.DecisionTree.MaxDepth = []int{2, 4}
	cfg.DecisionTree.MinSamplesSplit = []int{2}
	cfg.DecisionTree.MinSamplesLeaf = []int{1}
	cfg.KNN.NNeighbors = []int{3, 5}
	cfg.RandomForest.NEstimators = 8
	cfg.RandomForest.MinSamplesLeaf = 2
	cfg.Output.FiguresDir = filepath.Join(dir, "figures")
	cfg.Output.ResultsCSV = filepath.Join(dir, "out", "results.csv")
	cfg.Output.ReportPath = filepath.Join(dir, "out", "report.yaml")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	_, kept := writeSynthetic(t, dir)

	desc, clean, err := NewRunner(cfg, zaptest.NewLogger(t).Sugar()).Describe(context.Background())
	require.NoError(t, err)

	assert.Equal(t, syntheticRows, desc.Clean.RowsBefore)
	assert.Equal(t, kept, desc.Clean.RowsAfter)
	assert.Equal(t, kept, clean.NumRows())
	assert.Equal(t, 0, clean.TotalMissing())
	assert.Contains(t, desc.Clean.Fills, data.ColumnPH)
	assert.Contains(t, desc.Clean.Fills, data.ColumnSulfate)
	assert.NotContains(t, desc.Clean.Fills, data.ColumnTrihalomethanes)

	require.Len(t, desc.Summary, len(data.PredictorColumns))
	assert.Equal(t, data.ColumnPH, desc.Summary[0].Column)
	assert.Equal(t, syntheticRows-13, desc.Summary[0].Count)
	require.Len(t, desc.Histograms, len(data.PredictorColumns))

	for _, info := range desc.CleanInfo {
		assert.Zero(t, info.Missing, info.Column)
	}
	r, err := desc.Correlation.At(data.ColumnPH, data.ColumnPH)
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)
	r, err = desc.Correlation.At(data.ColumnPH, data.ColumnPotability)
	require.NoError(t, err)
	assert.Greater(t, r, 0.5)
}

func TestRunEndToEnd(t *testing.T) {
	for _, fitOn := range []string{config.FitOnAll, config.FitOnTrain} {
		t.Run(fitOn, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(t, dir)
			cfg.Scaling.FitOn = fitOn

			runner := NewRunner(cfg, zaptest.NewLogger(t).Sugar())
			report, err := runner.Run(context.Background())
			require.NoError(t, err)

			kept := report.Description.Clean.RowsAfter
			assert.Equal(t, kept, report.TrainRows+report.TestRows)
			assert.Equal(t, int(math.Ceil(0.3*float64(kept))), report.TestRows)
			assert.Equal(t, fitOn, report.ScalingFit)

			names := make([]string, len(report.Results))
			for i, res := range report.Results {
				names[i] = res.Name
			}
			assert.Equal(t, []string{
				"Decision Tree (baseline)",
				"Decision Tree (tuned)",
				"Logistic Regression",
				"K-Nearest Neighbors (tuned)",
				"Support Vector Classifier",
				"Random Forest",
			}, names)

			require.Len(t, report.Jobs, 6)
			for _, job := range report.Jobs {
				assert.Equal(t, jobs.JobCompleted, job.Status, job.Name)
			}
			assert.Empty(t, runner.Jobs.Failed())

			byName := make(map[string]*ModelResult)
			for _, res := range report.Results {
				byName[res.Name] = res
				assert.Equal(t, report.TestRows, res.Test.NumSamples, res.Name)
				assert.Equal(t, report.TrainRows, res.Train.NumSamples, res.Name)
			}

			baseline := byName["Decision Tree (baseline)"]
			assert.Equal(t, 1.0, baseline.Train.Accuracy)
			assert.Len(t, baseline.Importances, len(data.PredictorColumns))

			tuned := byName["Decision Tree (tuned)"]
			require.NotNil(t, tuned.Search)
			assert.Len(t, tuned.Search.Candidates, 4)
			assert.Len(t, tuned.Search.Candidates[0].CV.Scores, 3)

			knn := byName["K-Nearest Neighbors (tuned)"]
			require.NotNil(t, knn.Search)
			assert.Contains(t, []any{3, 5}, knn.Search.BestParams["n_neighbors"])
			assert.Empty(t, knn.Importances)

			lr := byName["Logistic Regression"]
			require.NotNil(t, lr.PR)
			assert.Greater(t, lr.Test.Accuracy, 0.7)
			assert.Len(t, lr.PR.Curve.Precision, len(lr.PR.Curve.Thresholds)+1)

			forest := byName["Random Forest"]
			assert.Len(t, forest.Model.(*models.RandomForest).Trees, 8)

			// results CSV: header plus a train and a test row per model
			f, err := os.Open(cfg.Output.ResultsCSV)
			require.NoError(t, err)
			defer f.Close()
			rows, err := csv.NewReader(f).ReadAll()
			require.NoError(t, err)
			require.Len(t, rows, 1+2*len(report.Results))
			assert.Equal(t, resultsHeader, rows[0])
			assert.Equal(t, []string{"Decision Tree (baseline)", models.AlgorithmDecisionTree, "train"}, rows[1][:3])
			assert.Equal(t, "test", rows[2][2])

			var saved map[string]any
			require.NoError(t, persistence.LoadReport(cfg.Output.ReportPath, &saved))
			assert.Len(t, saved["results"], len(report.Results))

			assert.FileExists(t, filepath.Join(cfg.Output.FiguresDir, "correlation.png"))
			assert.FileExists(t, filepath.Join(cfg.Output.FiguresDir, "histograms", "ph.png"))
			assert.FileExists(t, filepath.Join(cfg.Output.FiguresDir, "confusion", "random_forest_test.png"))
			assert.FileExists(t, filepath.Join(cfg.Output.FiguresDir, "importance", "decision_tree_tuned.png"))
			assert.FileExists(t, filepath.Join(cfg.Output.FiguresDir, "pr_curve", "logistic_regression.png"))
			assert.Equal(t, len(report.Figures), countFiles(t, cfg.Output.FiguresDir))
		})
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func TestRunIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	cfg.Models.Enabled = []string{models.AlgorithmDecisionTree, models.AlgorithmKNN}
	cfg.Output = config.OutputConfig{}

	first, err := NewRunner(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	second, err := NewRunner(cfg, nil).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, first.Results, 3)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Params, second.Results[i].Params)
		assert.Equal(t, first.Results[i].Test.ConfusionMatrix, second.Results[i].Test.ConfusionMatrix)
	}
	assert.Equal(t, first.Results[1].Search.BestParams, second.Results[1].Search.BestParams)
}

func TestTrainersRejectsUnknownModel(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Enabled = []string{"naive_bayes"}
	_, err := NewRunner(cfg, nil).Trainers()
	assert.Error(t, err)
}

func TestRunMissingSource(t *testing.T) {
	cfg := config.Default()
	cfg.Source.Path = filepath.Join(t.TempDir(), "absent.csv")
	_, err := NewRunner(cfg, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestFormatParams(t *testing.T) {
	assert.Equal(t, "criterion=gini max_depth=3", FormatParams(map[string]any{"max_depth": 3, "criterion": "gini"}))
	assert.Equal(t, "", FormatParams(nil))
}

func columnMean(rows [][]float64, j int) float64 {
	sum := 0.0
	for _, row := range rows {
		sum += row[j]
	}
	return sum / float64(len(rows))
}

func TestPrepareScalingScope(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	runner := NewRunner(cfg, zaptest.NewLogger(t).Sugar())
	_, clean, err := runner.Describe(context.Background())
	require.NoError(t, err)

	all, err := runner.Prepare(clean)
	require.NoError(t, err)
	assert.Equal(t, data.PredictorColumns, all.Features)
	rows := append(append([][]float64{}, all.Split.XTrain...), all.Split.XTest...)
	for j := range all.Features {
		assert.InDelta(t, 0, columnMean(rows, j), 1e-9, all.Features[j])
	}

	cfg.Scaling.FitOn = config.FitOnTrain
	trainOnly, err := runner.Prepare(clean)
	require.NoError(t, err)
	assert.Equal(t, all.Split.TrainIndices, trainOnly.Split.TrainIndices)
	assert.Equal(t, all.Split.TestIndices, trainOnly.Split.TestIndices)
	for j := range trainOnly.Features {
		assert.InDelta(t, 0, columnMean(trainOnly.Split.XTrain, j), 1e-9, trainOnly.Features[j])
	}
	// the test rows are scaled with train statistics, so they differ
	// between the two modes
	assert.NotEqual(t, all.Split.XTest[0], trainOnly.Split.XTest[0])
}
