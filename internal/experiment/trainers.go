package experiment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"potability/internal/evaluation"
	"potability/internal/models"
)

// Dataset is the read-only input every trainer receives.
type Dataset struct {
	Features []string
	Classes  []int
	Split    *evaluation.Split
}

type FeatureImportance struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

// PRSummary is the logistic regression precision/recall trade-off on the
// training split.
type PRSummary struct {
	Curve     *evaluation.PRCurve `json:"curve" yaml:"curve"`
	Threshold float64             `json:"balanced_threshold" yaml:"balanced_threshold"`
	Precision float64             `json:"precision" yaml:"precision"`
	Recall    float64             `json:"recall" yaml:"recall"`
}

type ModelResult struct {
	Name         string                            `json:"name" yaml:"name"`
	Algorithm    string                            `json:"algorithm" yaml:"algorithm"`
	Params       map[string]any                    `json:"params" yaml:"params"`
	Train        *evaluation.ClassificationMetrics `json:"train" yaml:"train"`
	Test         *evaluation.ClassificationMetrics `json:"test" yaml:"test"`
	Importances  []FeatureImportance               `json:"importances,omitempty" yaml:"importances,omitempty"`
	Search       *evaluation.GridSearchResult      `json:"grid_search,omitempty" yaml:"grid_search,omitempty"`
	PR           *PRSummary                        `json:"precision_recall,omitempty" yaml:"precision_recall,omitempty"`
	TrainingTime time.Duration                     `json:"training_time" yaml:"training_time"`
	Model        models.Model                      `json:"-" yaml:"-"`
}

// SortedImportances orders importances by descending value.
func (r *ModelResult) SortedImportances() []FeatureImportance {
	out := append([]FeatureImportance(nil), r.Importances...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

// Trainer fits and evaluates one model on a Dataset. Trainers share no
// state and can run in any order.
type Trainer interface {
	Name() string
	Algorithm() string
	Train(ctx context.Context, ds *Dataset) (*ModelResult, error)
}

// evaluate scores a fitted model on both partitions and attaches its
// feature importances when it has any.
func evaluate(name, algorithm string, model models.Model, ds *Dataset, elapsed time.Duration) (*ModelResult, error) {
	res := &ModelResult{
		Name:         name,
		Algorithm:    algorithm,
		Params:       model.GetParams(),
		TrainingTime: elapsed,
		Model:        model,
	}

	var err error
	res.Train, err = evaluation.CalculateMetrics(ds.Split.YTrain, model.Predict(ds.Split.XTrain), ds.Classes)
	if err != nil {
		return nil, fmt.Errorf("%s train metrics: %w", name, err)
	}
	res.Test, err = evaluation.CalculateMetrics(ds.Split.YTest, model.Predict(ds.Split.XTest), ds.Classes)
	if err != nil {
		return nil, fmt.Errorf("%s test metrics: %w", name, err)
	}

	if fi, ok := model.(models.FeatureImportancer); ok {
		values, err := fi.FeatureImportances()
		if err != nil {
			return nil, fmt.Errorf("%s importances: %w", name, err)
		}
		if len(values) != len(ds.Features) {
			return nil, fmt.Errorf("%s: %d importances for %d features", name, len(values), len(ds.Features))
		}
		for j, v := range values {
			res.Importances = append(res.Importances, FeatureImportance{Feature: ds.Features[j], Importance: v})
		}
	}
	return res, nil
}

func fitAndEvaluate(name, algorithm string, model models.Model, ds *Dataset) (*ModelResult, error) {
	start := time.Now()
	if err := model.Fit(ds.Split.XTrain, ds.Split.YTrain); err != nil {
		return nil, fmt.Errorf("%s fit: %w", name, err)
	}
	return evaluate(name, algorithm, model, ds, time.Since(start))
}

// BaselineTreeTrainer fits an untuned tree for comparison with the tuned one.
type BaselineTreeTrainer struct {
	Config models.DecisionTreeConfig
}

func (t *BaselineTreeTrainer) Name() string      { return "Decision Tree (baseline)" }
func (t *BaselineTreeTrainer) Algorithm() string { return models.AlgorithmDecisionTree }

func (t *BaselineTreeTrainer) Train(ctx context.Context, ds *Dataset) (*ModelResult, error) {
	return fitAndEvaluate(t.Name(), t.Algorithm(), models.NewDecisionTree(t.Config), ds)
}

// SearchTrainer grid-searches a model family on the training split with
// stratified k-fold accuracy and evaluates the refitted winner.
type SearchTrainer struct {
	DisplayName string
	Family      string
	Builder     models.Builder
	Grid        evaluation.Grid
	Folds       int
	Workers     int
	Logger      *zap.SugaredLogger
}

func (t *SearchTrainer) Name() string      { return t.DisplayName }
func (t *SearchTrainer) Algorithm() string { return t.Family }

func (t *SearchTrainer) Train(ctx context.Context, ds *Dataset) (*ModelResult, error) {
	gs := &evaluation.GridSearch{
		Builder: t.Builder,
		Grid:    t.Grid,
		NFolds:  t.Folds,
		Workers: t.Workers,
		Logger:  t.Logger,
	}
	start := time.Now()
	search, err := gs.Fit(ctx, ds.Split.XTrain, ds.Split.YTrain)
	if err != nil {
		return nil, fmt.Errorf("%s grid search: %w", t.DisplayName, err)
	}
	res, err := evaluate(t.DisplayName, t.Family, search.BestModel, ds, time.Since(start))
	if err != nil {
		return nil, err
	}
	res.Search = search
	return res, nil
}

func NewTreeSearchTrainer(base models.DecisionTreeConfig, grid evaluation.Grid, folds, workers int, logger *zap.SugaredLogger) *SearchTrainer {
	return &SearchTrainer{
		DisplayName: "Decision Tree (tuned)",
		Family:      models.AlgorithmDecisionTree,
		Builder:     models.DecisionTreeBuilder(base),
		Grid:        grid,
		Folds:       folds,
		Workers:     workers,
		Logger:      logger,
	}
}

func NewKNNSearchTrainer(base models.KNNConfig, grid evaluation.Grid, folds, workers int, logger *zap.SugaredLogger) *SearchTrainer {
	return &SearchTrainer{
		DisplayName: "K-Nearest Neighbors (tuned)",
		Family:      models.AlgorithmKNN,
		Builder:     models.KNNBuilder(base),
		Grid:        grid,
		Folds:       folds,
		Workers:     workers,
		Logger:      logger,
	}
}

// LogisticTrainer also computes the precision/recall curve of the
// predicted probabilities on the training split.
type LogisticTrainer struct {
	Config models.LogisticRegressionConfig
	Logger *zap.SugaredLogger
}

func (t *LogisticTrainer) Name() string      { return "Logistic Regression" }
func (t *LogisticTrainer) Algorithm() string { return models.AlgorithmLogisticRegression }

func (t *LogisticTrainer) Train(ctx context.Context, ds *Dataset) (*ModelResult, error) {
	lr := models.NewLogisticRegression(t.Config)
	res, err := fitAndEvaluate(t.Name(), t.Algorithm(), lr, ds)
	if err != nil {
		return nil, err
	}
	if !lr.Converged && t.Logger != nil {
		t.Logger.Warnw("logistic regression hit the iteration cap", "max_iter", lr.Config.MaxIter)
	}

	positive := lr.Classes[len(lr.Classes)-1]
	scores := make([]float64, len(ds.Split.XTrain))
	for i, p := range lr.PredictProba(ds.Split.XTrain) {
		scores[i] = p[1]
	}
	curve, err := evaluation.PrecisionRecallCurve(ds.Split.YTrain, scores, positive)
	if err != nil {
		return nil, fmt.Errorf("%s precision-recall: %w", t.Name(), err)
	}
	threshold, precision, recall := curve.BalancedThreshold()
	res.PR = &PRSummary{Curve: curve, Threshold: threshold, Precision: precision, Recall: recall}
	return res, nil
}

type SVCTrainer struct {
	Config models.SVCConfig
}

func (t *SVCTrainer) Name() string      { return "Support Vector Classifier" }
func (t *SVCTrainer) Algorithm() string { return models.AlgorithmSVC }

func (t *SVCTrainer) Train(ctx context.Context, ds *Dataset) (*ModelResult, error) {
	return fitAndEvaluate(t.Name(), t.Algorithm(), models.NewSVC(t.Config), ds)
}

type ForestTrainer struct {
	Config  models.RandomForestConfig
	Workers int
}

func (t *ForestTrainer) Name() string      { return "Random Forest" }
func (t *ForestTrainer) Algorithm() string { return models.AlgorithmRandomForest }

func (t *ForestTrainer) Train(ctx context.Context, ds *Dataset) (*ModelResult, error) {
	rf := models.NewRandomForest(t.Config)
	if t.Workers > 0 {
		rf.MaxWorkers = t.Workers
	}
	return fitAndEvaluate(t.Name(), t.Algorithm(), rf, ds)
}
