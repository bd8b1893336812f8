package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"potability/internal/models"
)

// twoClusters returns n points per class around (-3,-3) and (3,3).
func twoClusters(n int) ([][]float64, []int) {
	var X [][]float64
	var y []int
	for i := 0; i < n; i++ {
		d := float64(i%5) * 0.2
		X = append(X, []float64{-3 + d, -3 - d})
		y = append(y, 0)
		X = append(X, []float64{3 - d, 3 + d})
		y = append(y, 1)
	}
	return X, y
}

func TestStratifiedKFoldAssignment(t *testing.T) {
	y := labelsWithCounts(6, 4)
	folds, err := StratifiedKFold(y, 2)
	require.NoError(t, err)
	require.Len(t, folds, 2)

	seen := make(map[int]int)
	for _, fold := range folds {
		assert.Equal(t, 3, countClass(y, fold.Test, 0))
		assert.Equal(t, 2, countClass(y, fold.Test, 1))
		assert.Len(t, fold.Train, len(y)-len(fold.Test))
		for _, idx := range fold.Test {
			seen[idx]++
		}
	}
	assert.Len(t, seen, len(y))
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}

	// no shuffling: the first members of each class land in fold 0
	assert.Equal(t, []int{0, 1, 2, 6, 7}, folds[0].Test)
}

func TestStratifiedKFoldErrors(t *testing.T) {
	_, err := StratifiedKFold([]int{0, 1, 0, 1}, 1)
	assert.Error(t, err)

	_, err = StratifiedKFold([]int{0, 1, 0}, 5)
	assert.Error(t, err)

	_, err = StratifiedKFold([]int{0, 1, 0, 1, 2, 3}, 3)
	assert.Error(t, err)
}

func TestCrossValidateParallelMatchesSerial(t *testing.T) {
	X, y := twoClusters(20)
	build := func() (models.Model, error) {
		return models.NewKNN(models.KNNConfig{K: 3}), nil
	}

	serial := NewCrossValidator(5)
	serial.Parallel = false
	a, err := serial.CrossValidate(X, y, build)
	require.NoError(t, err)

	b, err := NewCrossValidator(5).CrossValidate(X, y, build)
	require.NoError(t, err)

	assert.Equal(t, a.Scores, b.Scores)
	assert.Len(t, a.Scores, 5)
	assert.Equal(t, 1.0, a.Mean)
	assert.Equal(t, 0.0, a.Std)
}

func TestGridCombinationsOrder(t *testing.T) {
	grid := Grid{
		"splitter":  {"best", "random"},
		"criterion": {"gini", "entropy"},
	}
	combos := grid.Combinations()
	require.Len(t, combos, 4)
	assert.Equal(t, map[string]any{"criterion": "gini", "splitter": "best"}, combos[0])
	assert.Equal(t, map[string]any{"criterion": "gini", "splitter": "random"}, combos[1])
	assert.Equal(t, map[string]any{"criterion": "entropy", "splitter": "best"}, combos[2])

	assert.Len(t, Grid{}.Combinations(), 1)
}

func TestGridSearchSingleConfiguration(t *testing.T) {
	X, y := twoClusters(15)
	X = append(X, []float64{2.5, 2.5}, []float64{-2.5, -2.5})
	y = append(y, 0, 1)

	gs := &GridSearch{
		Builder: models.KNNBuilder(models.KNNConfig{}),
		Grid:    Grid{"n_neighbors": {1}},
		NFolds:  5,
		Workers: 2,
	}
	res, err := gs.Fit(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"n_neighbors": 1}, res.BestParams)
	require.Len(t, res.Candidates, 1)
	scores := res.Candidates[0].CV.Scores
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, sum/float64(len(scores)), res.BestScore, 1e-12)
	require.NotNil(t, res.BestModel)
	assert.Equal(t, []int{0, 1}, res.BestModel.GetClasses())
}

func TestGridSearchFirstBestWins(t *testing.T) {
	X, y := twoClusters(10)
	gs := &GridSearch{
		Builder: models.KNNBuilder(models.KNNConfig{}),
		Grid:    Grid{"n_neighbors": {1, 3, 5}},
		NFolds:  5,
		Workers: 3,
	}
	res, err := gs.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 0, res.BestIndex)
	assert.Equal(t, 1.0, res.BestScore)
}

func TestGridSearchBuilderError(t *testing.T) {
	X, y := twoClusters(10)
	gs := &GridSearch{
		Builder: models.KNNBuilder(models.KNNConfig{}),
		Grid:    Grid{"n_neighbors": {"three"}},
		NFolds:  5,
	}
	_, err := gs.Fit(context.Background(), X, y)
	assert.Error(t, err)
}

func TestGridSearchEmptyCandidates(t *testing.T) {
	X, y := twoClusters(5)
	gs := &GridSearch{
		Builder: models.KNNBuilder(models.KNNConfig{}),
		Grid:    Grid{"n_neighbors": {}, "distance": {"euclidean"}},
		NFolds:  5,
	}
	res, err := gs.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), `"n_neighbors"`)

	assert.NoError(t, Grid{}.Validate())
	assert.NoError(t, Grid{"n_neighbors": {3}}.Validate())

	_, err = (&GridSearch{Grid: Grid{"n_neighbors": {3}}, NFolds: 5}).Fit(context.Background(), X, y)
	assert.Error(t, err)
}

func TestPrecisionRecallCurve(t *testing.T) {
	curve, err := PrecisionRecallCurve([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8}, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.35, 0.4, 0.8}, curve.Thresholds)
	assert.InDeltaSlice(t, []float64{0.5, 2.0 / 3.0, 0.5, 1, 1}, curve.Precision, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1, 0.5, 0.5, 0}, curve.Recall, 1e-12)

	threshold, p, r := curve.BalancedThreshold()
	assert.Equal(t, 0.4, threshold)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 0.5, r)
}

func TestPrecisionRecallCurveErrors(t *testing.T) {
	_, err := PrecisionRecallCurve([]int{0, 0}, []float64{0.2, 0.3}, 1)
	assert.Error(t, err)
	_, err = PrecisionRecallCurve([]int{0}, nil, 1)
	assert.Error(t, err)
}
