package models

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

type RandomForestConfig struct {
	NTrees          int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Criterion       string
	// MaxFeatures per split; 0 means floor(sqrt(n_features)).
	MaxFeatures int
	Bootstrap   bool
	Seed        int64
}

func DefaultRandomForestConfig() RandomForestConfig {
	return RandomForestConfig{
		NTrees:          100,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  10,
		Criterion:       CriterionGini,
		Bootstrap:       true,
		Seed:            1,
	}
}

type RandomForest struct {
	BaseModel
	Config      RandomForestConfig
	MaxFeatures int
	Trees       []*DecisionTree
	Parallel    bool
	MaxWorkers  int
}

func NewRandomForest(cfg RandomForestConfig) *RandomForest {
	if cfg.NTrees <= 0 {
		cfg.NTrees = 100
	}
	if cfg.Criterion == "" {
		cfg.Criterion = CriterionGini
	}
	return &RandomForest{
		Config:     cfg,
		Parallel:   true,
		MaxWorkers: 4,
		BaseModel: BaseModel{
			Name: "RandomForest",
			Params: map[string]any{
				"n_estimators":      cfg.NTrees,
				"max_depth":         cfg.MaxDepth,
				"min_samples_split": cfg.MinSamplesSplit,
				"min_samples_leaf":  cfg.MinSamplesLeaf,
			},
		},
	}
}

func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	rf.Classes = ExtractClasses(y)
	nFeatures := len(X[0])

	rf.MaxFeatures = rf.Config.MaxFeatures
	if rf.MaxFeatures <= 0 {
		rf.MaxFeatures = int(math.Sqrt(float64(nFeatures)))
	}
	if rf.MaxFeatures < 1 {
		rf.MaxFeatures = 1
	}

	rf.Trees = make([]*DecisionTree, rf.Config.NTrees)

	if rf.Parallel {
		return rf.trainParallel(X, y)
	}

	return rf.trainSequential(X, y)
}

func (rf *RandomForest) trainParallel(X [][]float64, y []int) error {
	var wg sync.WaitGroup
	errors := make([]error, rf.Config.NTrees)

	workers := rf.MaxWorkers
	if workers > rf.Config.NTrees {
		workers = rf.Config.NTrees
	}

	jobs := make(chan int, rf.Config.NTrees)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tree, err := rf.trainSingleTree(X, y, i)
				rf.Trees[i] = tree
				errors[i] = err
			}
		}()
	}

	for i := 0; i < rf.Config.NTrees; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	for i, err := range errors {
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
	}

	return nil
}

func (rf *RandomForest) trainSequential(X [][]float64, y []int) error {
	for i := 0; i < rf.Config.NTrees; i++ {
		tree, err := rf.trainSingleTree(X, y, i)
		if err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}
		rf.Trees[i] = tree
	}
	return nil
}

// trainSingleTree seeds each tree from the forest seed and its index so the
// result does not depend on worker scheduling.
func (rf *RandomForest) trainSingleTree(X [][]float64, y []int, index int) (*DecisionTree, error) {
	seed := rf.Config.Seed*1000003 + int64(index)
	r := rand.New(rand.NewSource(seed))

	var weights []float64
	if rf.Config.Bootstrap {
		n := len(X)
		weights = make([]float64, n)
		for i := 0; i < n; i++ {
			weights[r.Intn(n)]++
		}
	}

	tree := NewDecisionTree(DecisionTreeConfig{
		Criterion:       rf.Config.Criterion,
		Splitter:        SplitterBest,
		MaxDepth:        rf.Config.MaxDepth,
		MinSamplesSplit: rf.Config.MinSamplesSplit,
		MinSamplesLeaf:  rf.Config.MinSamplesLeaf,
		MaxFeatures:     rf.MaxFeatures,
		Seed:            r.Int63(),
	})
	err := tree.fitWeighted(X, y, weights)
	return tree, err
}

// PredictProba averages the trees' leaf distributions.
func (rf *RandomForest) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	idx := classIndex(rf.Classes)

	for i := range X {
		proba[i] = make([]float64, len(rf.Classes))
	}
	if len(rf.Trees) == 0 {
		return proba
	}

	for _, tree := range rf.Trees {
		treeProba := tree.PredictProba(X)
		for i, row := range treeProba {
			for j, p := range row {
				proba[i][idx[tree.Classes[j]]] += p
			}
		}
	}

	nTrees := float64(len(rf.Trees))
	for i := range proba {
		for j := range proba[i] {
			proba[i][j] /= nTrees
		}
	}

	return proba
}

func (rf *RandomForest) Predict(X [][]float64) []int {
	proba := rf.PredictProba(X)
	predictions := make([]int, len(X))
	if len(rf.Classes) == 0 {
		return predictions
	}
	for i, row := range proba {
		predictions[i] = rf.Classes[argmax(row)]
	}
	return predictions
}

// FeatureImportances averages the per-tree normalised importances.
func (rf *RandomForest) FeatureImportances() ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, ErrNotFitted
	}

	var sum []float64
	counted := 0
	for _, tree := range rf.Trees {
		imp, err := tree.FeatureImportances()
		if err != nil {
			return nil, err
		}
		if sum == nil {
			sum = make([]float64, len(imp))
		}
		if tree.Depth() == 0 {
			continue
		}
		for j, v := range imp {
			sum[j] += v
		}
		counted++
	}
	if counted == 0 {
		return sum, nil
	}
	for j := range sum {
		sum[j] /= float64(counted)
	}
	return normalize(sum), nil
}

func (rf *RandomForest) Reset() {
	rf.Trees = nil
	rf.Classes = nil
}
