package evaluation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var ErrSplit = errors.New("invalid split")

// Split is a disjoint train/test partition. The index slices refer to rows
// of the matrix that was split.
type Split struct {
	TrainIndices []int
	TestIndices  []int
	XTrain       [][]float64
	XTest        [][]float64
	YTrain       []int
	YTest        []int
}

type TrainTestSplitter struct {
	testSize   float64
	randomSeed int64
	shuffle    bool
}

func NewTrainTestSplitter(testSize float64, randomSeed int64, shuffle bool) *TrainTestSplitter {
	return &TrainTestSplitter{
		testSize:   testSize,
		randomSeed: randomSeed,
		shuffle:    shuffle,
	}
}

func DefaultTrainTestSplitter() *TrainTestSplitter {
	return NewTrainTestSplitter(0.3, 1, true)
}

// SplitIndices computes a stratified partition of row indices from the
// labels alone, so callers can split before any feature transform.
func (tts *TrainTestSplitter) SplitIndices(y []int) (train, test []int, err error) {
	n := len(y)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: cannot split empty dataset", ErrSplit)
	}
	if tts.testSize <= 0 || tts.testSize >= 1 {
		return nil, nil, fmt.Errorf("%w: test size must be between 0 and 1, got %g", ErrSplit, tts.testSize)
	}

	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}
	classes := make([]int, 0, len(classIndices))
	for class := range classIndices {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	counts := make([]int, len(classes))
	for i, class := range classes {
		counts[i] = len(classIndices[class])
		if counts[i] < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has only %d member", ErrSplit, class, counts[i])
		}
	}

	nTest := int(math.Ceil(tts.testSize * float64(n)))
	nTrain := n - nTest
	if nTrain < len(classes) || nTest < len(classes) {
		return nil, nil, fmt.Errorf("%w: %d train / %d test rows cannot hold %d classes",
			ErrSplit, nTrain, nTest, len(classes))
	}

	trainAlloc := approximateMode(counts, nTrain)

	rng := rand.New(rand.NewSource(tts.randomSeed))
	for i, class := range classes {
		indices := append([]int(nil), classIndices[class]...)
		if tts.shuffle {
			rng.Shuffle(len(indices), func(a, b int) {
				indices[a], indices[b] = indices[b], indices[a]
			})
		}
		train = append(train, indices[:trainAlloc[i]]...)
		test = append(test, indices[trainAlloc[i]:]...)
	}

	if tts.shuffle {
		rng.Shuffle(len(train), func(i, j int) {
			train[i], train[j] = train[j], train[i]
		})
		rng.Shuffle(len(test), func(i, j int) {
			test[i], test[j] = test[j], test[i]
		})
	} else {
		sort.Ints(train)
		sort.Ints(test)
	}
	return train, test, nil
}

// StratifiedSplit partitions X and y keeping class proportions in both
// parts. Rows are shared with X, not copied.
func (tts *TrainTestSplitter) StratifiedSplit(X [][]float64, y []int) (*Split, error) {
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: x has %d rows, y has %d", ErrSplit, len(X), len(y))
	}
	train, test, err := tts.SplitIndices(y)
	if err != nil {
		return nil, err
	}
	return SplitByIndices(X, y, train, test), nil
}

// SplitByIndices materialises a Split from precomputed partitions.
func SplitByIndices(X [][]float64, y []int, train, test []int) *Split {
	s := &Split{
		TrainIndices: train,
		TestIndices:  test,
		XTrain:       make([][]float64, len(train)),
		XTest:        make([][]float64, len(test)),
		YTrain:       make([]int, len(train)),
		YTest:        make([]int, len(test)),
	}
	for i, idx := range train {
		s.XTrain[i] = X[idx]
		s.YTrain[i] = y[idx]
	}
	for i, idx := range test {
		s.XTest[i] = X[idx]
		s.YTest[i] = y[idx]
	}
	return s
}

// approximateMode allocates nDraws units across classes proportionally to
// counts: floors first, then the largest fractional remainders, ties going
// to the earlier class.
func approximateMode(counts []int, nDraws int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}

	alloc := make([]int, len(counts))
	remainders := make([]float64, len(counts))
	assigned := 0
	for i, c := range counts {
		continuous := float64(nDraws) * float64(c) / float64(total)
		alloc[i] = int(math.Floor(continuous))
		remainders[i] = continuous - float64(alloc[i])
		assigned += alloc[i]
	}

	order := make([]int, len(counts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for k := 0; assigned < nDraws && k < len(order); k++ {
		alloc[order[k]]++
		assigned++
	}
	return alloc
}
