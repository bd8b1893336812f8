package evaluation

import (
	"errors"
	"fmt"
	"math"
)

// Misclassification costs for the cost-sensitive loss: a missed potable
// sample is ten times worse than a false alarm.
const (
	CostFalsePositive = 1.0
	CostFalseNegative = 10.0
)

var ErrEmptyInput = errors.New("no samples to evaluate")

type ClassificationMetrics struct {
	Accuracy          float64              `json:"accuracy" yaml:"accuracy"`
	MacroPrecision    float64              `json:"macro_precision" yaml:"macro_precision"`
	MacroRecall       float64              `json:"macro_recall" yaml:"macro_recall"`
	MacroF1           float64              `json:"macro_f1" yaml:"macro_f1"`
	WeightedPrecision float64              `json:"weighted_precision" yaml:"weighted_precision"`
	WeightedRecall    float64              `json:"weighted_recall" yaml:"weighted_recall"`
	WeightedF1        float64              `json:"weighted_f1" yaml:"weighted_f1"`
	Classes           []int                `json:"classes" yaml:"classes"`
	PerClassMetrics   map[int]ClassMetrics `json:"per_class_metrics" yaml:"per_class_metrics"`
	// ConfusionMatrix is indexed [actual][predicted] in Classes order.
	ConfusionMatrix [][]int  `json:"confusion_matrix" yaml:"confusion_matrix"`
	NumSamples      int      `json:"num_samples" yaml:"num_samples"`
	Cost            Cost     `json:"cost" yaml:"cost"`
	Warnings        []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type ClassMetrics struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1Score   float64 `json:"f1_score" yaml:"f1_score"`
	Support   int     `json:"support" yaml:"support"`
}

// Cost treats the last class as positive.
type Cost struct {
	FalsePositives int     `json:"false_positives" yaml:"false_positives"`
	FalseNegatives int     `json:"false_negatives" yaml:"false_negatives"`
	Total          float64 `json:"total" yaml:"total"`
}

// CalculateMetrics scores yPred against yTrue over a fixed class list.
// Undefined ratios are reported as 0 with a ZeroDivision warning.
func CalculateMetrics(yTrue, yPred []int, classes []int) (*ClassificationMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("label length mismatch: %d true vs %d predicted", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, ErrEmptyInput
	}
	if len(classes) == 0 {
		return nil, errors.New("no classes to evaluate")
	}

	numSamples := len(yTrue)
	numClasses := len(classes)
	confusionMatrix := buildConfusionMatrix(yTrue, yPred, classes)

	m := &ClassificationMetrics{
		Classes:         append([]int(nil), classes...),
		PerClassMetrics: make(map[int]ClassMetrics, numClasses),
		ConfusionMatrix: confusionMatrix,
		NumSamples:      numSamples,
	}

	totalSupport := 0
	for i, class := range classes {
		tp := confusionMatrix[i][i]
		fp, fn := 0, 0
		for j := range classes {
			if j != i {
				fp += confusionMatrix[j][i]
				fn += confusionMatrix[i][j]
			}
		}
		support := tp + fn

		if tp+fp == 0 {
			m.warn("ZeroDivision: precision of class %d is ill-defined (no predicted samples), set to 0", class)
		}
		if support == 0 {
			m.warn("ZeroDivision: recall of class %d is ill-defined (no true samples), set to 0", class)
		}
		precision := safeDivide(float64(tp), float64(tp+fp))
		recall := safeDivide(float64(tp), float64(support))
		f1 := safeDivide(2*precision*recall, precision+recall)

		m.PerClassMetrics[class] = ClassMetrics{
			Precision: precision,
			Recall:    recall,
			F1Score:   f1,
			Support:   support,
		}

		m.MacroPrecision += precision
		m.MacroRecall += recall
		m.MacroF1 += f1

		m.WeightedPrecision += precision * float64(support)
		m.WeightedRecall += recall * float64(support)
		m.WeightedF1 += f1 * float64(support)
		totalSupport += support
	}

	m.MacroPrecision /= float64(numClasses)
	m.MacroRecall /= float64(numClasses)
	m.MacroF1 /= float64(numClasses)

	m.WeightedPrecision = safeDivide(m.WeightedPrecision, float64(totalSupport))
	m.WeightedRecall = safeDivide(m.WeightedRecall, float64(totalSupport))
	m.WeightedF1 = safeDivide(m.WeightedF1, float64(totalSupport))

	m.Accuracy = Accuracy(yTrue, yPred)
	m.Cost = costOf(confusionMatrix)
	return m, nil
}

// Accuracy is the share of exact matches; lengths must agree.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i, pred := range yPred {
		if pred == yTrue[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

func costOf(matrix [][]int) Cost {
	var c Cost
	last := len(matrix) - 1
	if last < 1 {
		return c
	}
	for actual := range matrix {
		for predicted, n := range matrix[actual] {
			switch {
			case actual == predicted:
			case predicted == last:
				c.FalsePositives += n
			case actual == last:
				c.FalseNegatives += n
			}
		}
	}
	c.Total = float64(c.FalsePositives)*CostFalsePositive + float64(c.FalseNegatives)*CostFalseNegative
	return c
}

func (m *ClassificationMetrics) warn(format string, args ...any) {
	m.Warnings = append(m.Warnings, fmt.Sprintf(format, args...))
}

func buildConfusionMatrix(yTrue, yPred []int, classes []int) [][]int {
	numClasses := len(classes)
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	classToIdx := make(map[int]int)
	for i, class := range classes {
		classToIdx[class] = i
	}

	for i := range yTrue {
		trueIdx, trueOk := classToIdx[yTrue[i]]
		predIdx, predOk := classToIdx[yPred[i]]
		if trueOk && predOk {
			matrix[trueIdx][predIdx]++
		}
	}

	return matrix
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}
