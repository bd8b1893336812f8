package commander

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potability/internal/config"
	"potability/internal/evaluation"
	"potability/internal/experiment"
	"potability/internal/jobs"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "potability dev\n", out)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "potability.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	def := config.Default()
	assert.Equal(t, def.Split, cfg.Split)
	assert.Equal(t, def.Models.Enabled, cfg.Models.Enabled)
	assert.Equal(t, def.KNN.NNeighbors, cfg.KNN.NNeighbors)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err)

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "potability.yaml")
	require.NoError(t, os.WriteFile(path, []byte("split:\n  seed: 42\n"), 0o644))

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "seed: 42")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "describe")
	assert.Error(t, err)
}

func TestPrinterResults(t *testing.T) {
	train, err := evaluation.CalculateMetrics([]int{0, 0, 1, 1}, []int{0, 0, 1, 1}, []int{0, 1})
	require.NoError(t, err)
	test, err := evaluation.CalculateMetrics([]int{0, 1}, []int{1, 1}, []int{0, 1})
	require.NoError(t, err)

	report := &experiment.RunReport{
		ScalingFit: config.FitOnAll,
		TrainRows:  4,
		TestRows:   2,
		Results: []*experiment.ModelResult{{
			Name:         "Decision Tree (baseline)",
			Algorithm:    "decision_tree",
			Params:       map[string]any{"criterion": "gini"},
			Train:        train,
			Test:         test,
			Importances:  []experiment.FeatureImportance{{Feature: "ph", Importance: 0.25}, {Feature: "Sulfate", Importance: 0.75}},
			TrainingTime: 3 * time.Millisecond,
		}},
		Jobs: []experiment.JobSummary{
			{ID: "a", Name: "Decision Tree (baseline)", Status: jobs.JobCompleted},
			{ID: "b", Name: "Support Vector Classifier", Status: jobs.JobFailed, Error: "boom"},
		},
	}

	var out bytes.Buffer
	NewPrinter(&out).Results(report)
	text := out.String()

	assert.Contains(t, text, "train rows: 4, test rows: 2")
	assert.Contains(t, text, "Not Potable")
	assert.Contains(t, text, "Cost: 1 false positives, 0 false negatives, total 1")
	assert.Contains(t, text, "Best model: Decision Tree (baseline)")
	assert.Contains(t, text, "Sulfate")
	assert.Contains(t, text, "boom")
}
