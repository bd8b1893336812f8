package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const ClassWeightBalanced = "balanced"

// LogisticRegressionConfig mirrors a liblinear-style L2 logistic
// regression: the intercept is an extra weight on a constant feature and
// is regularised along with the coefficients.
type LogisticRegressionConfig struct {
	C                float64
	ClassWeight      string
	FitIntercept     bool
	InterceptScaling float64
	MaxIter          int
	Tol              float64
}

func DefaultLogisticRegressionConfig() LogisticRegressionConfig {
	return LogisticRegressionConfig{
		C:                1.0,
		ClassWeight:      ClassWeightBalanced,
		FitIntercept:     true,
		InterceptScaling: 1.0,
		MaxIter:          500,
		Tol:              1e-4,
	}
}

type LogisticRegression struct {
	BaseModel
	Config    LogisticRegressionConfig
	Coef      []float64
	Intercept float64
	// Converged is false when the optimiser stopped on its iteration cap.
	Converged bool
	fitted    bool
}

func NewLogisticRegression(cfg LogisticRegressionConfig) *LogisticRegression {
	if cfg.C <= 0 {
		cfg.C = 1.0
	}
	if cfg.InterceptScaling == 0 {
		cfg.InterceptScaling = 1.0
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 500
	}
	if cfg.Tol <= 0 {
		cfg.Tol = 1e-4
	}
	return &LogisticRegression{
		Config: cfg,
		BaseModel: BaseModel{
			Name: "LogisticRegression",
			Params: map[string]any{
				"C":            cfg.C,
				"class_weight": cfg.ClassWeight,
				"solver":       "lbfgs-liblinear-objective",
			},
		},
	}
}

// BalancedClassWeights returns n_samples / (n_classes * count(class)).
func BalancedClassWeights(y []int) map[int]float64 {
	counts := make(map[int]int)
	for _, label := range y {
		counts[label]++
	}
	weights := make(map[int]float64, len(counts))
	for class, n := range counts {
		weights[class] = float64(len(y)) / (float64(len(counts)) * float64(n))
	}
	return weights
}

func (lr *LogisticRegression) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	lr.Classes = ExtractClasses(y)
	if len(lr.Classes) != 2 {
		return fmt.Errorf("%w: got %d", ErrNotBinary, len(lr.Classes))
	}

	nFeatures := len(X[0])
	dim := nFeatures
	if lr.Config.FitIntercept {
		dim++
	}

	classWeights := map[int]float64{lr.Classes[0]: 1, lr.Classes[1]: 1}
	if lr.Config.ClassWeight == ClassWeightBalanced {
		classWeights = BalancedClassWeights(y)
	}

	rows := make([][]float64, len(X))
	signs := make([]float64, len(y))
	costs := make([]float64, len(y))
	for i, sample := range X {
		rows[i] = make([]float64, dim)
		copy(rows[i], sample)
		if lr.Config.FitIntercept {
			rows[i][nFeatures] = lr.Config.InterceptScaling
		}
		signs[i] = -1
		if y[i] == lr.Classes[1] {
			signs[i] = 1
		}
		costs[i] = lr.Config.C * classWeights[y[i]]
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			f := 0.5 * floats.Dot(w, w)
			for i, row := range rows {
				f += costs[i] * logLoss(signs[i]*floats.Dot(w, row))
			}
			return f
		},
		Grad: func(grad, w []float64) {
			copy(grad, w)
			for i, row := range rows {
				margin := signs[i] * floats.Dot(w, row)
				scale := costs[i] * (sigmoid(margin) - 1) * signs[i]
				floats.AddScaled(grad, scale, row)
			}
		},
	}

	settings := &optimize.Settings{
		GradientThreshold: lr.Config.Tol,
		MajorIterations:   lr.Config.MaxIter,
	}
	result, err := optimize.Minimize(problem, make([]float64, dim), settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != dim {
		if err == nil {
			err = fmt.Errorf("optimizer returned no solution")
		}
		return fmt.Errorf("logistic regression: %w", err)
	}
	lr.Converged = err == nil && result.Status != optimize.IterationLimit

	lr.Coef = make([]float64, nFeatures)
	copy(lr.Coef, result.X[:nFeatures])
	lr.Intercept = 0
	if lr.Config.FitIntercept {
		lr.Intercept = result.X[nFeatures] * lr.Config.InterceptScaling
	}
	lr.fitted = true
	return nil
}

// DecisionFunction returns w·x + b for each sample.
func (lr *LogisticRegression) DecisionFunction(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if !lr.fitted {
		return out
	}
	for i, sample := range X {
		out[i] = floats.Dot(lr.Coef, sample) + lr.Intercept
	}
	return out
}

func (lr *LogisticRegression) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	for i, z := range lr.DecisionFunction(X) {
		p := sigmoid(z)
		proba[i] = []float64{1 - p, p}
	}
	return proba
}

func (lr *LogisticRegression) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	if !lr.fitted {
		return predictions
	}
	for i, z := range lr.DecisionFunction(X) {
		if z > 0 {
			predictions[i] = lr.Classes[1]
		} else {
			predictions[i] = lr.Classes[0]
		}
	}
	return predictions
}

// FeatureImportances returns the signed coefficients.
func (lr *LogisticRegression) FeatureImportances() ([]float64, error) {
	if !lr.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(lr.Coef))
	copy(out, lr.Coef)
	return out, nil
}

func (lr *LogisticRegression) Reset() {
	lr.Coef = nil
	lr.Intercept = 0
	lr.Classes = nil
	lr.fitted = false
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logLoss computes log(1 + exp(-t)) without overflow.
func logLoss(t float64) float64 {
	if t > 0 {
		return math.Log1p(math.Exp(-t))
	}
	return -t + math.Log1p(math.Exp(t))
}
