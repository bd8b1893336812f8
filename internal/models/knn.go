package models

import (
	"math"
	"sort"
)

const (
	DistanceEuclidean = "euclidean"
	DistanceManhattan = "manhattan"
)

type KNNConfig struct {
	K        int
	Distance string
}

type KNN struct {
	BaseModel
	K        int
	Distance string
	XTrain   [][]float64
	yTrain   []int
}

func NewKNN(cfg KNNConfig) *KNN {
	k := cfg.K
	if k <= 0 {
		k = 5
	}

	distance := cfg.Distance
	if distance != DistanceEuclidean && distance != DistanceManhattan {
		distance = DistanceEuclidean
	}

	return &KNN{
		K:        k,
		Distance: distance,
		BaseModel: BaseModel{
			Name: "KNN",
			Params: map[string]any{
				"n_neighbors": k,
				"distance":    distance,
			},
		},
	}
}

func (knn *KNN) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}

	knn.XTrain = make([][]float64, len(X))
	for i := range X {
		knn.XTrain[i] = make([]float64, len(X[i]))
		copy(knn.XTrain[i], X[i])
	}

	knn.yTrain = make([]int, len(y))
	copy(knn.yTrain, y)

	knn.Classes = ExtractClasses(y)
	return nil
}

func (knn *KNN) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	if len(knn.Classes) == 0 {
		return predictions
	}

	for i, row := range knn.PredictProba(X) {
		predictions[i] = knn.Classes[argmax(row)]
	}

	return predictions
}

// PredictProba gives the share of each class among the k nearest
// neighbours; ties between classes resolve to the lower label in Predict.
func (knn *KNN) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))

	for i, sample := range X {
		neighbors := knn.findNeighbors(sample)
		proba[i] = knn.calculateProbabilities(neighbors)
	}

	return proba
}

func (knn *KNN) findNeighbors(sample []float64) []int {
	type neighbor struct {
		index    int
		distance float64
	}

	neighbors := make([]neighbor, len(knn.XTrain))

	for i, trainSample := range knn.XTrain {
		dist := knn.calculateDistance(sample, trainSample)
		neighbors[i] = neighbor{index: i, distance: dist}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].distance < neighbors[j].distance
	})

	k := knn.K
	if k > len(neighbors) {
		k = len(neighbors)
	}
	kNeighbors := make([]int, k)
	for i := 0; i < k; i++ {
		kNeighbors[i] = neighbors[i].index
	}

	return kNeighbors
}

func (knn *KNN) calculateDistance(a, b []float64) float64 {
	sum := 0.0
	switch knn.Distance {
	case DistanceManhattan:
		for i := range a {
			sum += math.Abs(a[i] - b[i])
		}
		return sum
	default:
		for i := range a {
			diff := a[i] - b[i]
			sum += diff * diff
		}
		return math.Sqrt(sum)
	}
}

func (knn *KNN) calculateProbabilities(neighbors []int) []float64 {
	idx := classIndex(knn.Classes)
	proba := make([]float64, len(knn.Classes))
	if len(neighbors) == 0 {
		return proba
	}

	for _, neighborIdx := range neighbors {
		proba[idx[knn.yTrain[neighborIdx]]]++
	}

	total := float64(len(neighbors))
	for i := range proba {
		proba[i] /= total
	}

	return proba
}

func (knn *KNN) Reset() {
	knn.XTrain = nil
	knn.yTrain = nil
	knn.Classes = nil
}
