package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clusters returns n points per class on small grids around (0,0) and
// (5,5).
func clusters(n int) ([][]float64, []int) {
	var X [][]float64
	var y []int
	for class, offset := range []float64{0, 5} {
		for i := 0; i < n; i++ {
			X = append(X, []float64{offset + float64(i%3)*0.3, offset + float64(i/3)*0.3})
			y = append(y, class)
		}
	}
	return X, y
}

func accuracy(yTrue, yPred []int) float64 {
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

func TestDecisionTreeSeparable(t *testing.T) {
	X, y := clusters(10)
	tree := NewDecisionTree(DefaultDecisionTreeConfig())
	require.NoError(t, tree.Fit(X, y))

	assert.Equal(t, 1.0, accuracy(y, tree.Predict(X)))
	assert.Equal(t, []int{0, 1}, tree.GetClasses())
	assert.Equal(t, 1, tree.Depth())

	proba := tree.PredictProba([][]float64{{0, 0}, {5, 5}})
	assert.Equal(t, []float64{1, 0}, proba[0])
	assert.Equal(t, []float64{0, 1}, proba[1])
}

func TestDecisionTreeImportances(t *testing.T) {
	var X [][]float64
	var y []int
	for i := 0; i < 10; i++ {
		X = append(X, []float64{float64(i), 3})
		if i >= 5 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}
	tree := NewDecisionTree(DefaultDecisionTreeConfig())
	_, err := tree.FeatureImportances()
	assert.ErrorIs(t, err, ErrNotFitted)

	require.NoError(t, tree.Fit(X, y))
	imp, err := tree.FeatureImportances()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0}, imp, 1e-12)
	assert.Equal(t, 4.5, tree.Root.Threshold)
}

func TestDecisionTreeMaxDepth(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}
	y := []int{0, 1, 0, 1, 0, 1, 0, 1}

	cfg := DefaultDecisionTreeConfig()
	cfg.MaxDepth = 2
	tree := NewDecisionTree(cfg)
	require.NoError(t, tree.Fit(X, y))
	assert.LessOrEqual(t, tree.Depth(), 2)

	full := NewDecisionTree(DefaultDecisionTreeConfig())
	require.NoError(t, full.Fit(X, y))
	assert.Equal(t, 1.0, accuracy(y, full.Predict(X)))
}

func TestDecisionTreeRandomSplitterIsSeeded(t *testing.T) {
	X, y := clusters(12)
	cfg := DefaultDecisionTreeConfig()
	cfg.Splitter = SplitterRandom
	cfg.Seed = 7

	a := NewDecisionTree(cfg)
	b := NewDecisionTree(cfg)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Root.Threshold, b.Root.Threshold)
	assert.Equal(t, a.Root.Feature, b.Root.Feature)
}

func TestDecisionTreeClassWeight(t *testing.T) {
	// one feature value shared by both classes: the leaf follows the
	// heavier weighted class
	X := [][]float64{{1}, {1}, {1}, {1}}
	y := []int{0, 0, 0, 1}

	cfg := DefaultDecisionTreeConfig()
	cfg.ClassWeight = map[int]float64{0: 0.1, 1: 1}
	tree := NewDecisionTree(cfg)
	require.NoError(t, tree.Fit(X, y))
	assert.Equal(t, []int{1}, tree.Predict([][]float64{{1}}))

	plain := NewDecisionTree(DefaultDecisionTreeConfig())
	require.NoError(t, plain.Fit(X, y))
	assert.Equal(t, []int{0}, plain.Predict([][]float64{{1}}))
}

func TestDecisionTreeErrors(t *testing.T) {
	assert.ErrorIs(t, NewDecisionTree(DefaultDecisionTreeConfig()).Fit(nil, nil), ErrEmptyTraining)

	cfg := DefaultDecisionTreeConfig()
	cfg.Criterion = "log_loss"
	assert.Error(t, NewDecisionTree(cfg).Fit([][]float64{{1}}, []int{0}))
}

func TestKNN(t *testing.T) {
	X, y := clusters(6)
	knn := NewKNN(KNNConfig{K: 1})
	require.NoError(t, knn.Fit(X, y))
	assert.Equal(t, y, knn.Predict(X))

	knn = NewKNN(KNNConfig{K: 3, Distance: DistanceManhattan})
	require.NoError(t, knn.Fit(X, y))
	proba := knn.PredictProba([][]float64{{0.1, 0.1}, {5.2, 5.2}})
	assert.Equal(t, []float64{1, 0}, proba[0])
	assert.Equal(t, []float64{0, 1}, proba[1])

	defaults := NewKNN(KNNConfig{Distance: "cosine"})
	assert.Equal(t, 5, defaults.K)
	assert.Equal(t, DistanceEuclidean, defaults.Distance)
}

func TestKNNTieResolvesToLowerClass(t *testing.T) {
	X := [][]float64{{0}, {2}}
	y := []int{1, 0}
	knn := NewKNN(KNNConfig{K: 2})
	require.NoError(t, knn.Fit(X, y))
	assert.Equal(t, []int{0}, knn.Predict([][]float64{{1}}))
}

func TestLogisticRegressionSeparable(t *testing.T) {
	X, y := clusters(10)
	lr := NewLogisticRegression(DefaultLogisticRegressionConfig())
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, 1.0, accuracy(y, lr.Predict(X)))
	for _, row := range lr.PredictProba(X) {
		assert.InDelta(t, 1, row[0]+row[1], 1e-12)
	}

	coef, err := lr.FeatureImportances()
	require.NoError(t, err)
	assert.Len(t, coef, 2)
	assert.Positive(t, coef[0])
	assert.Positive(t, coef[1])
}

func TestLogisticRegressionNotBinary(t *testing.T) {
	lr := NewLogisticRegression(DefaultLogisticRegressionConfig())
	err := lr.Fit([][]float64{{0}, {1}, {2}}, []int{0, 1, 2})
	assert.ErrorIs(t, err, ErrNotBinary)

	_, err = lr.FeatureImportances()
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestBalancedClassWeights(t *testing.T) {
	w := BalancedClassWeights([]int{0, 0, 0, 1})
	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)
}

func TestSVC(t *testing.T) {
	X, y := clusters(10)
	for _, kernel := range []string{KernelRBF, KernelLinear} {
		cfg := DefaultSVCConfig()
		cfg.Kernel = kernel
		svc := NewSVC(cfg)
		require.NoError(t, svc.Fit(X, y), kernel)
		assert.Equal(t, 1.0, accuracy(y, svc.Predict(X)), kernel)
		assert.NotEmpty(t, svc.SupportVectors, kernel)
		assert.Positive(t, svc.Gamma, kernel)
	}

	cfg := DefaultSVCConfig()
	cfg.Kernel = "poly"
	assert.Error(t, NewSVC(cfg).Fit(X, y))
	assert.ErrorIs(t, NewSVC(DefaultSVCConfig()).Fit([][]float64{{1}, {2}}, []int{1, 1}), ErrNotBinary)
}

func TestRandomForest(t *testing.T) {
	X, y := clusters(15)
	cfg := DefaultRandomForestConfig()
	cfg.NTrees = 12
	cfg.MinSamplesLeaf = 1

	parallel := NewRandomForest(cfg)
	require.NoError(t, parallel.Fit(X, y))
	assert.Len(t, parallel.Trees, 12)
	assert.Equal(t, 1.0, accuracy(y, parallel.Predict(X)))

	sequential := NewRandomForest(cfg)
	sequential.Parallel = false
	require.NoError(t, sequential.Fit(X, y))

	a, err := parallel.FeatureImportances()
	require.NoError(t, err)
	b, err := sequential.FeatureImportances()
	require.NoError(t, err)
	assert.InDeltaSlice(t, a, b, 1e-12)
	assert.Equal(t, parallel.PredictProba(X), sequential.PredictProba(X))
}

func TestDecisionTreeWithParams(t *testing.T) {
	base := DefaultDecisionTreeConfig()
	cfg, err := base.WithParams(map[string]any{
		"criterion":         "entropy",
		"splitter":          "random",
		"max_depth":         float64(5),
		"min_samples_split": 4,
		"min_samples_leaf":  int64(2),
	})
	require.NoError(t, err)
	assert.Equal(t, CriterionEntropy, cfg.Criterion)
	assert.Equal(t, SplitterRandom, cfg.Splitter)
	assert.Equal(t, 5, cfg.MaxDepth)
	assert.Equal(t, 4, cfg.MinSamplesSplit)
	assert.Equal(t, 2, cfg.MinSamplesLeaf)
	assert.Equal(t, CriterionGini, base.Criterion)

	_, err = base.WithParams(map[string]any{"criterion": "mse"})
	assert.Error(t, err)
	_, err = base.WithParams(map[string]any{"max_depth": 2.5})
	assert.Error(t, err)
	_, err = base.WithParams(map[string]any{"max_leaf_nodes": 3})
	assert.Error(t, err)
}

func TestBuilders(t *testing.T) {
	model, err := KNNBuilder(KNNConfig{K: 5})(map[string]any{"n_neighbors": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, model.GetParams()["n_neighbors"])

	_, err = KNNBuilder(KNNConfig{K: 5})(map[string]any{"n_neighbors": 0})
	assert.Error(t, err)

	model, err = DecisionTreeBuilder(DefaultDecisionTreeConfig())(map[string]any{"max_depth": 3})
	require.NoError(t, err)
	assert.Equal(t, 3, model.(*DecisionTree).Config.MaxDepth)
}
