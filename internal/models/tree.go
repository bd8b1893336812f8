package models

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
	SplitterBest     = "best"
	SplitterRandom   = "random"

	featureThreshold = 1e-7
	impurityEpsilon  = 1e-7
)

type TreeNode struct {
	IsLeaf    bool
	Class     int
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Samples   int
	// WeightedSamples is the sum of sample and class weights in the node.
	WeightedSamples float64
	Impurity        float64
	// Value holds weighted class totals, indexed like Classes.
	Value []float64
}

// DecisionTreeConfig configures a CART classifier. A zero MaxDepth grows
// the tree until leaves are pure or too small to split.
type DecisionTreeConfig struct {
	Criterion       string
	Splitter        string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures caps the features tried per split; 0 means all.
	MaxFeatures int
	ClassWeight map[int]float64
	Seed        int64
}

func DefaultDecisionTreeConfig() DecisionTreeConfig {
	return DecisionTreeConfig{
		Criterion:       CriterionGini,
		Splitter:        SplitterBest,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Seed:            1,
	}
}

type DecisionTree struct {
	BaseModel
	Config    DecisionTreeConfig
	Root      *TreeNode
	NFeatures int

	importances []float64
	rng         *rand.Rand
	classIdx    map[int]int
	weights     []float64
}

func NewDecisionTree(cfg DecisionTreeConfig) *DecisionTree {
	if cfg.Criterion == "" {
		cfg.Criterion = CriterionGini
	}
	if cfg.Splitter == "" {
		cfg.Splitter = SplitterBest
	}
	if cfg.MinSamplesSplit < 2 {
		cfg.MinSamplesSplit = 2
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}

	return &DecisionTree{
		Config: cfg,
		BaseModel: BaseModel{
			Name: "DecisionTree",
			Params: map[string]any{
				"criterion":         cfg.Criterion,
				"splitter":          cfg.Splitter,
				"max_depth":         cfg.MaxDepth,
				"min_samples_split": cfg.MinSamplesSplit,
				"min_samples_leaf":  cfg.MinSamplesLeaf,
			},
		},
	}
}

func (dt *DecisionTree) Fit(X [][]float64, y []int) error {
	return dt.fitWeighted(X, y, nil)
}

// fitWeighted grows the tree; sampleWeight may be nil for unit weights.
// Samples with zero weight are left out.
func (dt *DecisionTree) fitWeighted(X [][]float64, y []int, sampleWeight []float64) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	if dt.Config.Criterion != CriterionGini && dt.Config.Criterion != CriterionEntropy {
		return fmt.Errorf("unknown criterion %q", dt.Config.Criterion)
	}
	if dt.Config.Splitter != SplitterBest && dt.Config.Splitter != SplitterRandom {
		return fmt.Errorf("unknown splitter %q", dt.Config.Splitter)
	}

	dt.Classes = ExtractClasses(y)
	dt.classIdx = classIndex(dt.Classes)
	dt.NFeatures = len(X[0])
	dt.importances = make([]float64, dt.NFeatures)
	dt.rng = rand.New(rand.NewSource(dt.Config.Seed))

	dt.weights = make([]float64, len(y))
	indices := make([]int, 0, len(y))
	for i, label := range y {
		w := 1.0
		if sampleWeight != nil {
			w = sampleWeight[i]
		}
		if cw, ok := dt.Config.ClassWeight[label]; ok {
			w *= cw
		}
		dt.weights[i] = w
		if sampleWeight == nil || sampleWeight[i] > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return ErrEmptyTraining
	}

	dt.Root = dt.buildTree(X, y, indices, 0)
	dt.weights = nil
	dt.rng = nil
	return nil
}

func (dt *DecisionTree) nodeValue(y []int, indices []int) ([]float64, float64) {
	value := make([]float64, len(dt.Classes))
	total := 0.0
	for _, i := range indices {
		value[dt.classIdx[y[i]]] += dt.weights[i]
		total += dt.weights[i]
	}
	return value, total
}

func (dt *DecisionTree) impurity(value []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch dt.Config.Criterion {
	case CriterionEntropy:
		h := 0.0
		for _, v := range value {
			if v > 0 {
				p := v / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, v := range value {
			p := v / total
			g -= p * p
		}
		return g
	}
}

type split struct {
	feature   int
	threshold float64
	left      []int
	right     []int
	leftImp   float64
	rightImp  float64
	leftW     float64
	rightW    float64
	proxy     float64
	found     bool
}

func (dt *DecisionTree) buildTree(X [][]float64, y []int, indices []int, depth int) *TreeNode {
	value, total := dt.nodeValue(y, indices)
	node := &TreeNode{
		Samples:         len(indices),
		WeightedSamples: total,
		Impurity:        dt.impurity(value, total),
		Value:           value,
		Class:           dt.Classes[argmax(value)],
	}

	if (dt.Config.MaxDepth > 0 && depth >= dt.Config.MaxDepth) ||
		len(indices) < dt.Config.MinSamplesSplit ||
		len(indices) < 2*dt.Config.MinSamplesLeaf ||
		node.Impurity <= impurityEpsilon {
		node.IsLeaf = true
		return node
	}

	best := dt.findBestSplit(X, y, indices)
	if !best.found {
		node.IsLeaf = true
		return node
	}

	node.Feature = best.feature
	node.Threshold = best.threshold
	dt.importances[best.feature] += total*node.Impurity -
		best.leftW*best.leftImp - best.rightW*best.rightImp

	node.Left = dt.buildTree(X, y, best.left, depth+1)
	node.Right = dt.buildTree(X, y, best.right, depth+1)
	return node
}

// candidateFeatures returns the features to try at a node, shuffled when
// only a subset is allowed.
func (dt *DecisionTree) candidateFeatures() []int {
	features := dt.rng.Perm(dt.NFeatures)
	if dt.Config.MaxFeatures > 0 && dt.Config.MaxFeatures < dt.NFeatures {
		return features[:dt.Config.MaxFeatures]
	}
	if dt.Config.Splitter == SplitterBest && dt.Config.MaxFeatures == 0 {
		sort.Ints(features)
	}
	return features
}

func (dt *DecisionTree) findBestSplit(X [][]float64, y []int, indices []int) split {
	best := split{proxy: math.Inf(-1)}
	for _, f := range dt.candidateFeatures() {
		var s split
		if dt.Config.Splitter == SplitterRandom {
			s = dt.randomSplit(X, y, indices, f)
		} else {
			s = dt.bestSplitForFeature(X, y, indices, f)
		}
		if s.found && s.proxy > best.proxy {
			best = s
		}
	}
	return best
}

func (dt *DecisionTree) bestSplitForFeature(X [][]float64, y []int, indices []int, f int) split {
	sorted := make([]int, len(indices))
	copy(sorted, indices)
	sort.SliceStable(sorted, func(a, b int) bool {
		return X[sorted[a]][f] < X[sorted[b]][f]
	})

	n := len(sorted)
	minLeaf := dt.Config.MinSamplesLeaf
	if X[sorted[n-1]][f] <= X[sorted[0]][f]+featureThreshold {
		return split{}
	}

	totalValue, totalW := dt.nodeValue(y, sorted)
	leftValue := make([]float64, len(dt.Classes))
	rightValue := make([]float64, len(dt.Classes))
	leftW := 0.0

	best := split{proxy: math.Inf(-1)}
	bestPos := -1
	for p := 1; p < n; p++ {
		prev := sorted[p-1]
		leftValue[dt.classIdx[y[prev]]] += dt.weights[prev]
		leftW += dt.weights[prev]

		if X[sorted[p]][f] <= X[prev][f]+featureThreshold {
			continue
		}
		if p < minLeaf || n-p < minLeaf {
			continue
		}

		for c := range rightValue {
			rightValue[c] = totalValue[c] - leftValue[c]
		}
		rightW := totalW - leftW
		leftImp := dt.impurity(leftValue, leftW)
		rightImp := dt.impurity(rightValue, rightW)
		proxy := -(leftW*leftImp + rightW*rightImp)
		if proxy > best.proxy {
			best = split{
				feature:  f,
				leftImp:  leftImp,
				rightImp: rightImp,
				leftW:    leftW,
				rightW:   rightW,
				proxy:    proxy,
				found:    true,
			}
			best.threshold = X[prev][f]/2 + X[sorted[p]][f]/2
			if best.threshold >= X[sorted[p]][f] || math.IsInf(best.threshold, 0) {
				best.threshold = X[prev][f]
			}
			bestPos = p
		}
	}

	if !best.found {
		return best
	}
	best.left = append([]int(nil), sorted[:bestPos]...)
	best.right = append([]int(nil), sorted[bestPos:]...)
	return best
}

// randomSplit draws one threshold uniformly between the node's minimum and
// maximum value of feature f.
func (dt *DecisionTree) randomSplit(X [][]float64, y []int, indices []int, f int) split {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, i := range indices {
		v := X[i][f]
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo+featureThreshold {
		return split{}
	}

	threshold := lo + dt.rng.Float64()*(hi-lo)
	if threshold >= hi {
		threshold = lo
	}

	var left, right []int
	for _, i := range indices {
		if X[i][f] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < dt.Config.MinSamplesLeaf || len(right) < dt.Config.MinSamplesLeaf {
		return split{}
	}

	leftValue, leftW := dt.nodeValue(y, left)
	rightValue, rightW := dt.nodeValue(y, right)
	leftImp := dt.impurity(leftValue, leftW)
	rightImp := dt.impurity(rightValue, rightW)
	return split{
		feature:   f,
		threshold: threshold,
		left:      left,
		right:     right,
		leftImp:   leftImp,
		rightImp:  rightImp,
		leftW:     leftW,
		rightW:    rightW,
		proxy:     -(leftW*leftImp + rightW*rightImp),
		found:     true,
	}
}

func (dt *DecisionTree) leaf(sample []float64) *TreeNode {
	node := dt.Root
	for !node.IsLeaf {
		if sample[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

func (dt *DecisionTree) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	if dt.Root == nil {
		return predictions
	}

	for i, sample := range X {
		predictions[i] = dt.leaf(sample).Class
	}

	return predictions
}

func (dt *DecisionTree) PredictProba(X [][]float64) [][]float64 {
	proba := make([][]float64, len(X))
	if dt.Root == nil {
		return proba
	}

	for i, sample := range X {
		node := dt.leaf(sample)
		proba[i] = make([]float64, len(dt.Classes))
		for j, v := range node.Value {
			if node.WeightedSamples > 0 {
				proba[i][j] = v / node.WeightedSamples
			}
		}
	}

	return proba
}

// FeatureImportances returns the normalised total impurity decrease
// contributed by each feature.
func (dt *DecisionTree) FeatureImportances() ([]float64, error) {
	if dt.Root == nil {
		return nil, ErrNotFitted
	}
	return normalize(dt.importances), nil
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (dt *DecisionTree) Depth() int {
	var walk func(n *TreeNode) int
	walk = func(n *TreeNode) int {
		if n == nil || n.IsLeaf {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(dt.Root)
}

func (dt *DecisionTree) Reset() {
	dt.Root = nil
	dt.Classes = nil
	dt.importances = nil
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	total := 0.0
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}
