package evaluation

import (
	"fmt"
	"math"
	"sort"
)

// PRCurve holds precision/recall pairs for increasing thresholds. The
// final point (precision 1, recall 0) has no threshold.
type PRCurve struct {
	Precision  []float64 `json:"precision" yaml:"precision"`
	Recall     []float64 `json:"recall" yaml:"recall"`
	Thresholds []float64 `json:"thresholds" yaml:"thresholds"`
}

// PrecisionRecallCurve sweeps every distinct score as a decision threshold
// (score >= threshold predicts positive).
func PrecisionRecallCurve(yTrue []int, scores []float64, positive int) (*PRCurve, error) {
	if len(yTrue) != len(scores) {
		return nil, fmt.Errorf("label length %d does not match score length %d", len(yTrue), len(scores))
	}
	if len(yTrue) == 0 {
		return nil, ErrEmptyInput
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	totalPositive := 0
	for _, label := range yTrue {
		if label == positive {
			totalPositive++
		}
	}
	if totalPositive == 0 {
		return nil, fmt.Errorf("no samples of positive class %d", positive)
	}

	// Cumulative counts at the last index of each distinct score, highest
	// threshold first.
	var tps, fps []int
	var thresholds []float64
	tp, fp := 0, 0
	for k, idx := range order {
		if yTrue[idx] == positive {
			tp++
		} else {
			fp++
		}
		if k == len(order)-1 || scores[order[k+1]] != scores[idx] {
			tps = append(tps, tp)
			fps = append(fps, fp)
			thresholds = append(thresholds, scores[idx])
		}
	}

	curve := &PRCurve{}
	for k := len(tps) - 1; k >= 0; k-- {
		curve.Precision = append(curve.Precision, safeDivide(float64(tps[k]), float64(tps[k]+fps[k])))
		curve.Recall = append(curve.Recall, float64(tps[k])/float64(totalPositive))
		curve.Thresholds = append(curve.Thresholds, thresholds[k])
	}
	curve.Precision = append(curve.Precision, 1)
	curve.Recall = append(curve.Recall, 0)
	return curve, nil
}

// BalancedThreshold returns the threshold where precision and recall are
// closest, with the values at that point.
func (c *PRCurve) BalancedThreshold() (threshold, precision, recall float64) {
	best := -1
	bestGap := math.Inf(1)
	for i := range c.Thresholds {
		gap := math.Abs(c.Precision[i] - c.Recall[i])
		if gap < bestGap {
			best = i
			bestGap = gap
		}
	}
	if best < 0 {
		return math.NaN(), 0, 0
	}
	return c.Thresholds[best], c.Precision[best], c.Recall[best]
}
