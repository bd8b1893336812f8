package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultSourceURL, c.Source.URL)
	assert.Equal(t, 0.3, c.Split.TestSize)
	assert.Equal(t, int64(1), c.Split.Seed)
	assert.Equal(t, 5, c.CV.Folds)
	assert.Equal(t, FitOnAll, c.Scaling.FitOn)
	assert.Equal(t, []int{1, 3, 5, 7, 9, 11, 15}, c.KNN.NNeighbors)
	assert.Equal(t, []int{3, 5, 7, 10}, c.DecisionTree.MaxDepth)
	assert.Equal(t, map[int]float64{0: 0.95, 1: 0.05}, c.DecisionTree.ClassWeights())
	assert.Equal(t, 100, c.RandomForest.NEstimators)
	assert.Equal(t, "balanced", c.LogisticRegression.ClassWeight)
	assert.Len(t, c.Models.Enabled, 5)
	require.NoError(t, c.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "potability.yaml")
	content := `
source:
  path: water.csv
split:
  test_size: 0.25
knn:
  n_neighbors: [3, 5]
scaling:
  fit_on: train
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("POTABILITY_SPLIT_SEED", "7")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "water.csv", c.Source.Path)
	assert.Equal(t, 0.25, c.Split.TestSize)
	assert.Equal(t, int64(7), c.Split.Seed)
	assert.Equal(t, []int{3, 5}, c.KNN.NNeighbors)
	assert.Equal(t, FitOnTrain, c.Scaling.FitOn)
	assert.Equal(t, 5, c.CV.Folds)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Scaling.FitOn = "test"
	assert.Error(t, c.Validate())

	c = Default()
	c.Split.TestSize = 1
	assert.Error(t, c.Validate())

	c = Default()
	c.CV.Folds = 1
	assert.Error(t, c.Validate())

	c = Default()
	c.DecisionTree.ClassWeight = map[string]float64{"potable": 1}
	assert.Error(t, c.Validate())
}

func TestValidateNamedChoices(t *testing.T) {
	c := Default()
	c.Scaling.Method = "robust"
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scaling.method")

	for _, method := range []string{"standard", "standardized", "minmax", "normalized", "raw", "none", ""} {
		c = Default()
		c.Scaling.Method = method
		assert.NoError(t, c.Validate(), method)
	}

	c = Default()
	c.Models.Enabled = []string{"knn", "random_forrest"}
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models.enabled")
	assert.Contains(t, err.Error(), "random_forrest")

	c = Default()
	c.SVC.Kernel = "poly"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svc.kernel")

	c = Default()
	c.SVC.Kernel = "linear"
	assert.NoError(t, c.Validate())
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	c := Default()
	c.Output.FiguresDir = "figures"
	require.NoError(t, Save(c, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "figures", loaded.Output.FiguresDir)
	assert.Equal(t, c.DecisionTree.ClassWeights(), loaded.DecisionTree.ClassWeights())
}
