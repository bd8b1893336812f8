package models

import (
	"errors"
	"sort"
)

var (
	ErrNotFitted     = errors.New("model is not fitted")
	ErrEmptyTraining = errors.New("no training samples")
	ErrNotBinary     = errors.New("model needs exactly two classes")
)

type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
	GetType() string
	GetName() string
	GetParams() map[string]any
	GetClasses() []int
	Reset()
}

// ProbabilityModel is implemented by models that expose class
// probabilities, ordered like GetClasses.
type ProbabilityModel interface {
	Model
	PredictProba(X [][]float64) [][]float64
}

// FeatureImportancer is implemented by models that can score their input
// columns, one value per column in training order.
type FeatureImportancer interface {
	FeatureImportances() ([]float64, error)
}

type BaseModel struct {
	Name    string
	Params  map[string]any
	Classes []int
}

func (bm *BaseModel) GetType() string {
	return bm.Name
}

func (bm *BaseModel) GetName() string {
	return bm.Name
}

func (bm *BaseModel) GetParams() map[string]any {
	return bm.Params
}

func (bm *BaseModel) GetClasses() []int {
	return bm.Classes
}

// ExtractClasses returns the distinct labels in ascending order.
func ExtractClasses(y []int) []int {
	classMap := make(map[int]bool)
	for _, label := range y {
		classMap[label] = true
	}

	classes := make([]int, 0, len(classMap))
	for class := range classMap {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	return classes
}

func checkTrainingSet(X [][]float64, y []int) error {
	if len(X) == 0 || len(y) == 0 {
		return ErrEmptyTraining
	}
	if len(X) != len(y) {
		return errors.New("feature matrix and labels have different lengths")
	}
	return nil
}

func classIndex(classes []int) map[int]int {
	idx := make(map[int]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return idx
}

// argmax returns the first index holding the largest value.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
