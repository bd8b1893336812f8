package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"potability/internal/models"
	"potability/internal/preprocessing"
)

const (
	EnvPrefix = "POTABILITY"

	// DefaultSourceURL is the published share link of the water potability
	// dataset.
	DefaultSourceURL = "https://drive.google.com/file/d/1HdaYFPIjNJRqcWuZDrc1QyEdVvgrfLhX/view?usp=sharing"

	FitOnAll   = "all"
	FitOnTrain = "train"
)

type Config struct {
	Source         SourceConfig  `mapstructure:"source" yaml:"source"`
	HTTPTimeoutSec int           `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	Split          SplitConfig   `mapstructure:"split" yaml:"split"`
	CV             CVConfig      `mapstructure:"cv" yaml:"cv"`
	Scaling        ScalingConfig `mapstructure:"scaling" yaml:"scaling"`
	Output         OutputConfig  `mapstructure:"output" yaml:"output"`
	Models         ModelsConfig  `mapstructure:"models" yaml:"models"`

	DecisionTree       DecisionTreeSection       `mapstructure:"decision_tree" yaml:"decision_tree"`
	LogisticRegression LogisticRegressionSection `mapstructure:"logistic_regression" yaml:"logistic_regression"`
	KNN                KNNSection                `mapstructure:"knn" yaml:"knn"`
	SVC                SVCSection                `mapstructure:"svc" yaml:"svc"`
	RandomForest       RandomForestSection       `mapstructure:"random_forest" yaml:"random_forest"`
}

type SourceConfig struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Path string `mapstructure:"path" yaml:"path"`
}

type SplitConfig struct {
	TestSize float64 `mapstructure:"test_size" yaml:"test_size"`
	Seed     int64   `mapstructure:"seed" yaml:"seed"`
}

type CVConfig struct {
	Folds   int `mapstructure:"folds" yaml:"folds"`
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type ScalingConfig struct {
	Method string `mapstructure:"method" yaml:"method"`
	// FitOn is "all" to fit on every row before splitting or "train" to fit
	// on the training rows only.
	FitOn string `mapstructure:"fit_on" yaml:"fit_on"`
}

type OutputConfig struct {
	FiguresDir string `mapstructure:"figures_dir" yaml:"figures_dir"`
	ResultsCSV string `mapstructure:"results_csv" yaml:"results_csv"`
	ReportPath string `mapstructure:"report_path" yaml:"report_path"`
}

type ModelsConfig struct {
	Enabled []string `mapstructure:"enabled" yaml:"enabled"`
}

type DecisionTreeSection struct {
	Baseline bool `mapstructure:"baseline" yaml:"baseline"`
	// ClassWeight keys are class labels as text.
	ClassWeight     map[string]float64 `mapstructure:"class_weight" yaml:"class_weight"`
	Criterion       []string           `mapstructure:"criterion" yaml:"criterion"`
	Splitter        []string           `mapstructure:"splitter" yaml:"splitter"`
	MaxDepth        []int              `mapstructure:"max_depth" yaml:"max_depth"`
	MinSamplesSplit []int              `mapstructure:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  []int              `mapstructure:"min_samples_leaf" yaml:"min_samples_leaf"`
	Seed            int64              `mapstructure:"seed" yaml:"seed"`
}

type LogisticRegressionSection struct {
	C           float64 `mapstructure:"c" yaml:"c"`
	ClassWeight string  `mapstructure:"class_weight" yaml:"class_weight"`
	MaxIter     int     `mapstructure:"max_iter" yaml:"max_iter"`
}

type KNNSection struct {
	NNeighbors []int  `mapstructure:"n_neighbors" yaml:"n_neighbors"`
	Distance   string `mapstructure:"distance" yaml:"distance"`
}

type SVCSection struct {
	C      float64 `mapstructure:"c" yaml:"c"`
	Kernel string  `mapstructure:"kernel" yaml:"kernel"`
	// Gamma 0 derives the kernel width from the data.
	Gamma float64 `mapstructure:"gamma" yaml:"gamma"`
	Seed  int64   `mapstructure:"seed" yaml:"seed"`
}

type RandomForestSection struct {
	NEstimators    int   `mapstructure:"n_estimators" yaml:"n_estimators"`
	MaxDepth       int   `mapstructure:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int   `mapstructure:"min_samples_leaf" yaml:"min_samples_leaf"`
	Seed           int64 `mapstructure:"seed" yaml:"seed"`
	Workers        int   `mapstructure:"workers" yaml:"workers"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.path", "")
	v.SetDefault("http_timeout_sec", 60)

	v.SetDefault("split.test_size", 0.3)
	v.SetDefault("split.seed", 1)
	v.SetDefault("cv.folds", 5)
	v.SetDefault("cv.workers", 4)
	v.SetDefault("scaling.method", "standard")
	v.SetDefault("scaling.fit_on", FitOnAll)

	v.SetDefault("output.figures_dir", "")
	v.SetDefault("output.results_csv", "")
	v.SetDefault("output.report_path", "")
	v.SetDefault("models.enabled", []string{"decision_tree", "logistic_regression", "knn", "svc", "random_forest"})

	v.SetDefault("decision_tree.baseline", true)
	v.SetDefault("decision_tree.class_weight", map[string]any{"0": 0.95, "1": 0.05})
	v.SetDefault("decision_tree.criterion", []string{"gini", "entropy"})
	v.SetDefault("decision_tree.splitter", []string{"best", "random"})
	v.SetDefault("decision_tree.max_depth", []int{3, 5, 7, 10})
	v.SetDefault("decision_tree.min_samples_split", []int{2, 5, 10})
	v.SetDefault("decision_tree.min_samples_leaf", []int{1, 2, 4})
	v.SetDefault("decision_tree.seed", 1)

	v.SetDefault("logistic_regression.c", 1.0)
	v.SetDefault("logistic_regression.class_weight", "balanced")
	v.SetDefault("logistic_regression.max_iter", 500)

	v.SetDefault("knn.n_neighbors", []int{1, 3, 5, 7, 9, 11, 15})
	v.SetDefault("knn.distance", "euclidean")

	v.SetDefault("svc.c", 1.0)
	v.SetDefault("svc.kernel", "rbf")
	v.SetDefault("svc.gamma", 0.0)
	v.SetDefault("svc.seed", 1)

	v.SetDefault("random_forest.n_estimators", 100)
	v.SetDefault("random_forest.max_depth", 3)
	v.SetDefault("random_forest.min_samples_leaf", 10)
	v.SetDefault("random_forest.seed", 1)
	v.SetDefault("random_forest.workers", 4)
}

// Load reads defaults, then an optional YAML file, then POTABILITY_*
// environment variables (POTABILITY_SPLIT_SEED overrides split.seed).
// An explicit cfgFile must exist; otherwise ./potability.yaml is used when
// present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("potability")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("default config does not decode: %v", err))
	}
	return &c
}

func (c *Config) Validate() error {
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("split.test_size must be in (0, 1), got %g", c.Split.TestSize)
	}
	if c.CV.Folds < 2 {
		return fmt.Errorf("cv.folds must be at least 2, got %d", c.CV.Folds)
	}
	switch c.Scaling.FitOn {
	case FitOnAll, FitOnTrain:
	default:
		return fmt.Errorf("scaling.fit_on must be %q or %q, got %q", FitOnAll, FitOnTrain, c.Scaling.FitOn)
	}
	switch preprocessing.NewScaler(c.Scaling.Method).ScaleType {
	case preprocessing.ScaleStandard, preprocessing.ScaleMinMax, preprocessing.ScaleRaw:
	default:
		return fmt.Errorf("scaling.method %q is not one of %s, %s, %s",
			c.Scaling.Method, preprocessing.ScaleStandard, preprocessing.ScaleMinMax, preprocessing.ScaleRaw)
	}
	for _, name := range c.Models.Enabled {
		known := false
		for _, a := range models.Algorithms {
			if a == name {
				known = true
			}
		}
		if !known {
			return fmt.Errorf("models.enabled: unknown model %q (known: %s)", name, strings.Join(models.Algorithms, ", "))
		}
	}
	switch c.SVC.Kernel {
	case "", models.KernelRBF, models.KernelLinear:
	default:
		return fmt.Errorf("svc.kernel must be %q or %q, got %q", models.KernelRBF, models.KernelLinear, c.SVC.Kernel)
	}
	if c.Source.URL == "" && c.Source.Path == "" {
		return fmt.Errorf("either source.url or source.path must be set")
	}
	for key := range c.DecisionTree.ClassWeight {
		if _, err := strconv.Atoi(key); err != nil {
			return fmt.Errorf("decision_tree.class_weight key %q is not a class label", key)
		}
	}
	return nil
}

// ClassWeights converts the text-keyed decision tree weights to labels.
func (s DecisionTreeSection) ClassWeights() map[int]float64 {
	if len(s.ClassWeight) == 0 {
		return nil
	}
	out := make(map[int]float64, len(s.ClassWeight))
	for key, w := range s.ClassWeight {
		label, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[label] = w
	}
	return out
}

// Save writes c as YAML, creating parent directories.
func Save(c *Config, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
	}
	b, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func Marshal(c *Config) ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return b, nil
}
