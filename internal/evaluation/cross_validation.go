package evaluation

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"potability/internal/models"
)

// Fold holds the row indices of one cross-validation round.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold assigns every row to exactly one test fold, spreading each
// class evenly. Rows are taken in their original order.
func StratifiedKFold(y []int, nFolds int) ([]Fold, error) {
	n := len(y)
	if nFolds < 2 {
		return nil, fmt.Errorf("number of folds must be at least 2, got %d", nFolds)
	}
	if nFolds > n {
		return nil, fmt.Errorf("cannot make %d folds from %d samples", nFolds, n)
	}

	// Encode classes by order of first appearance.
	encoding := make(map[int]int)
	encoded := make([]int, n)
	var counts []int
	for i, label := range y {
		code, ok := encoding[label]
		if !ok {
			code = len(counts)
			encoding[label] = code
			counts = append(counts, 0)
		}
		encoded[i] = code
		counts[code]++
	}

	tooSmall := true
	for _, c := range counts {
		if c >= nFolds {
			tooSmall = false
		}
	}
	if tooSmall {
		return nil, fmt.Errorf("%d folds exceed the number of members in every class", nFolds)
	}

	// Deal the label-sorted rows round robin to get per-fold class quotas.
	sorted := make([]int, 0, n)
	for code, c := range counts {
		for k := 0; k < c; k++ {
			sorted = append(sorted, code)
		}
	}
	allocation := make([][]int, nFolds)
	for f := range allocation {
		allocation[f] = make([]int, len(counts))
		for i := f; i < n; i += nFolds {
			allocation[f][sorted[i]]++
		}
	}

	testFold := make([]int, n)
	for code := range counts {
		var assignment []int
		for f := 0; f < nFolds; f++ {
			for k := 0; k < allocation[f][code]; k++ {
				assignment = append(assignment, f)
			}
		}
		next := 0
		for i := range encoded {
			if encoded[i] == code {
				testFold[i] = assignment[next]
				next++
			}
		}
	}

	folds := make([]Fold, nFolds)
	for i, f := range testFold {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, i)
			} else {
				folds[g].Train = append(folds[g].Train, i)
			}
		}
	}
	return folds, nil
}

type CVResult struct {
	Scores []float64 `json:"scores" yaml:"scores"`
	Mean   float64   `json:"mean" yaml:"mean"`
	Std    float64   `json:"std" yaml:"std"`
}

// CrossValidator scores a model family by stratified k-fold accuracy. Each
// fold trains a fresh model from the builder.
type CrossValidator struct {
	NFolds     int
	Parallel   bool
	MaxWorkers int
}

func NewCrossValidator(nFolds int) *CrossValidator {
	return &CrossValidator{
		NFolds:     nFolds,
		Parallel:   true,
		MaxWorkers: 4,
	}
}

func (cv *CrossValidator) CrossValidate(X [][]float64, y []int, build func() (models.Model, error)) (*CVResult, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("x has %d rows, y has %d", len(X), len(y))
	}
	folds, err := StratifiedKFold(y, cv.NFolds)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(folds))
	errs := make([]error, len(folds))

	if !cv.Parallel || cv.MaxWorkers <= 1 {
		for i, fold := range folds {
			scores[i], errs[i] = evaluateFold(X, y, fold, build)
			if errs[i] != nil {
				return nil, fmt.Errorf("fold %d failed: %w", i, errs[i])
			}
		}
		return newCVResult(scores), nil
	}

	workers := cv.MaxWorkers
	if workers > len(folds) {
		workers = len(folds)
	}

	jobs := make(chan int, len(folds))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scores[i], errs[i] = evaluateFold(X, y, folds[i], build)
			}
		}()
	}
	for i := range folds {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fold %d failed: %w", i, err)
		}
	}
	return newCVResult(scores), nil
}

func evaluateFold(X [][]float64, y []int, fold Fold, build func() (models.Model, error)) (float64, error) {
	XTrain, yTrain := subset(X, y, fold.Train)
	XTest, yTest := subset(X, y, fold.Test)

	model, err := build()
	if err != nil {
		return 0, err
	}
	if err := model.Fit(XTrain, yTrain); err != nil {
		return 0, err
	}
	return Accuracy(yTest, model.Predict(XTest)), nil
}

func subset(X [][]float64, y []int, indices []int) ([][]float64, []int) {
	xs := make([][]float64, len(indices))
	ys := make([]int, len(indices))
	for i, idx := range indices {
		xs[i] = X[idx]
		ys[i] = y[idx]
	}
	return xs, ys
}

// newCVResult sums scores in fold order so the mean is reproducible.
func newCVResult(scores []float64) *CVResult {
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	_, variance := stat.PopMeanVariance(scores, nil)
	return &CVResult{
		Scores: scores,
		Mean:   sum / float64(len(scores)),
		Std:    math.Sqrt(math.Max(variance, 0)),
	}
}
