package evaluation

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"potability/internal/models"
)

// Grid maps parameter names to candidate values.
type Grid map[string][]any

// Combinations enumerates the Cartesian product with keys in sorted order
// and the last key varying fastest. An empty grid yields one empty set.
func (g Grid) Combinations() []map[string]any {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]any{{}}
	for _, key := range keys {
		values := g[key]
		next := make([]map[string]any, 0, len(combos)*len(values))
		for _, base := range combos {
			for _, v := range values {
				params := make(map[string]any, len(base)+1)
				for k, bv := range base {
					params[k] = bv
				}
				params[key] = v
				next = append(next, params)
			}
		}
		combos = next
	}
	return combos
}

type CandidateResult struct {
	Params map[string]any `json:"params" yaml:"params"`
	CV     *CVResult      `json:"cv" yaml:"cv"`
}

type GridSearchResult struct {
	BestParams map[string]any    `json:"best_params" yaml:"best_params"`
	BestScore  float64           `json:"best_score" yaml:"best_score"`
	BestIndex  int               `json:"best_index" yaml:"best_index"`
	Candidates []CandidateResult `json:"candidates" yaml:"candidates"`
	BestModel  models.Model      `json:"-" yaml:"-"`
}

type GridSearch struct {
	Builder models.Builder
	Grid    Grid
	NFolds  int
	// Workers bounds concurrent candidate evaluations; <= 0 means serial.
	Workers int
	Logger  *zap.SugaredLogger
}

// Validate rejects parameters without candidate values.
func (g Grid) Validate() error {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if len(g[key]) == 0 {
			return fmt.Errorf("grid parameter %q has no candidates", key)
		}
	}
	return nil
}

// Fit cross-validates every combination on (X, y), keeps the best mean
// accuracy (earliest wins ties) and refits it on all of (X, y).
func (gs *GridSearch) Fit(ctx context.Context, X [][]float64, y []int) (*GridSearchResult, error) {
	if gs.Builder == nil {
		return nil, fmt.Errorf("grid search has no model builder")
	}
	if err := gs.Grid.Validate(); err != nil {
		return nil, err
	}
	combos := gs.Grid.Combinations()
	logger := gs.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger.Debugw("grid search started", "candidates", len(combos), "folds", gs.NFolds)

	cv := NewCrossValidator(gs.NFolds)
	cv.Parallel = false

	results := make([]CandidateResult, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	if gs.Workers > 0 {
		g.SetLimit(gs.Workers)
	} else {
		g.SetLimit(1)
	}

	for i, params := range combos {
		i, params := i, params
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := cv.CrossValidate(X, y, func() (models.Model, error) {
				return gs.Builder(params)
			})
			if err != nil {
				return fmt.Errorf("candidate %v: %w", params, err)
			}
			results[i] = CandidateResult{Params: params, CV: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if results[i].CV.Mean > results[best].CV.Mean {
			best = i
		}
	}

	model, err := gs.Builder(results[best].Params)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("refit with %v: %w", results[best].Params, err)
	}

	logger.Infow("grid search finished",
		"model", model.GetName(),
		"best_params", results[best].Params,
		"best_score", results[best].CV.Mean)

	return &GridSearchResult{
		BestParams: results[best].Params,
		BestScore:  results[best].CV.Mean,
		BestIndex:  best,
		Candidates: results,
		BestModel:  model,
	}, nil
}
