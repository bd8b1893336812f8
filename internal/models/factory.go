package models

import (
	"fmt"
)

const (
	AlgorithmDecisionTree       = "decision_tree"
	AlgorithmLogisticRegression = "logistic_regression"
	AlgorithmKNN                = "knn"
	AlgorithmSVC                = "svc"
	AlgorithmRandomForest       = "random_forest"
)

// Algorithms lists every supported estimator in report order.
var Algorithms = []string{
	AlgorithmDecisionTree,
	AlgorithmLogisticRegression,
	AlgorithmKNN,
	AlgorithmSVC,
	AlgorithmRandomForest,
}

// WithParams returns a copy of cfg with grid parameters applied.
func (cfg DecisionTreeConfig) WithParams(params map[string]any) (DecisionTreeConfig, error) {
	out := cfg
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			out.Criterion, err = asString(key, value)
		case "splitter":
			out.Splitter, err = asString(key, value)
		case "max_depth":
			out.MaxDepth, err = asInt(key, value)
		case "min_samples_split":
			out.MinSamplesSplit, err = asInt(key, value)
		case "min_samples_leaf":
			out.MinSamplesLeaf, err = asInt(key, value)
		default:
			err = fmt.Errorf("unknown decision tree parameter %q", key)
		}
		if err != nil {
			return cfg, err
		}
	}
	if out.Criterion != CriterionGini && out.Criterion != CriterionEntropy {
		return cfg, fmt.Errorf("unknown criterion %q", out.Criterion)
	}
	if out.Splitter != SplitterBest && out.Splitter != SplitterRandom {
		return cfg, fmt.Errorf("unknown splitter %q", out.Splitter)
	}
	return out, nil
}

func (cfg KNNConfig) WithParams(params map[string]any) (KNNConfig, error) {
	out := cfg
	for key, value := range params {
		var err error
		switch key {
		case "n_neighbors":
			out.K, err = asInt(key, value)
		case "distance", "metric":
			out.Distance, err = asString(key, value)
		default:
			err = fmt.Errorf("unknown knn parameter %q", key)
		}
		if err != nil {
			return cfg, err
		}
	}
	if out.K <= 0 {
		return cfg, fmt.Errorf("n_neighbors must be positive, got %d", out.K)
	}
	return out, nil
}

// Builder creates an unfitted model for one parameter combination.
type Builder func(params map[string]any) (Model, error)

func DecisionTreeBuilder(base DecisionTreeConfig) Builder {
	return func(params map[string]any) (Model, error) {
		cfg, err := base.WithParams(params)
		if err != nil {
			return nil, err
		}
		return NewDecisionTree(cfg), nil
	}
}

func KNNBuilder(base KNNConfig) Builder {
	return func(params map[string]any) (Model, error) {
		cfg, err := base.WithParams(params)
		if err != nil {
			return nil, err
		}
		return NewKNN(cfg), nil
	}
}

func asInt(key string, value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("parameter %s: %v is not an integer", key, v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected integer, got %T", key, value)
	}
}

func asString(key string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s: expected string, got %T", key, value)
	}
	return s, nil
}
