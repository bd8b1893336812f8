package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"potability/internal/config"
	"potability/internal/data"
	"potability/internal/describe"
	"potability/internal/evaluation"
	"potability/internal/jobs"
	"potability/internal/models"
	"potability/internal/persistence"
	"potability/internal/preprocessing"
	"potability/internal/render"
)

// TargetNames label the two classes in reports and figures.
var TargetNames = []string{"Not Potable", "Potable"}

// Description is the exploratory part of a run.
type Description struct {
	RawInfo     []describe.ColumnInfo     `json:"raw_info" yaml:"raw_info"`
	Summary     []describe.ColumnSummary  `json:"summary" yaml:"summary"`
	Clean       preprocessing.CleanReport `json:"clean" yaml:"clean"`
	CleanInfo   []describe.ColumnInfo     `json:"clean_info" yaml:"clean_info"`
	Correlation describe.Matrix           `json:"correlation" yaml:"correlation"`
	Histograms  []describe.Histogram      `json:"histograms" yaml:"histograms"`
}

type JobSummary struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Status   jobs.JobStatus `json:"status" yaml:"status"`
	Error    string         `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration  `json:"duration" yaml:"duration"`
}

type RunReport struct {
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	Description *Description   `json:"description" yaml:"description"`
	ScalingFit  string         `json:"scaling_fit_on" yaml:"scaling_fit_on"`
	TrainRows   int            `json:"train_rows" yaml:"train_rows"`
	TestRows    int            `json:"test_rows" yaml:"test_rows"`
	Results     []*ModelResult `json:"results" yaml:"results"`
	Jobs        []JobSummary   `json:"jobs" yaml:"jobs"`
	Figures     []string       `json:"figures,omitempty" yaml:"figures,omitempty"`
}

// Runner drives the linear pipeline: load, clean, describe, scale, split,
// then one job per trainer.
type Runner struct {
	Config *config.Config
	Logger *zap.SugaredLogger
	Loader *data.Loader
	Jobs   *jobs.Manager
}

func NewRunner(cfg *config.Config, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{
		Config: cfg,
		Logger: logger,
		Loader: data.NewLoader(time.Duration(cfg.HTTPTimeoutSec)*time.Second, logger),
		Jobs:   jobs.NewManager(),
	}
}

// Describe loads and cleans the dataset and computes descriptive
// statistics. The cleaned table is returned for the modelling stages.
func (r *Runner) Describe(ctx context.Context) (*Description, *data.Table, error) {
	raw, err := r.Loader.Load(ctx, r.Config.Source.Path, r.Config.Source.URL)
	if err != nil {
		return nil, nil, err
	}
	validator := data.NewDataValidator()
	if err := validator.ValidateSchema(raw); err != nil {
		return nil, nil, err
	}

	r.Logger.Debugw("missing cells", "total", raw.TotalMissing(), "by_column", raw.MissingCounts())

	desc := &Description{RawInfo: describe.Info(raw)}
	desc.Summary, err = describe.Summarize(raw, data.PredictorColumns)
	if err != nil {
		return nil, nil, err
	}
	desc.Histograms, err = describe.Histograms(raw, data.PredictorColumns, describe.DefaultBins)
	if err != nil {
		return nil, nil, err
	}

	clean, report, err := preprocessing.NewCleaner(data.ColumnTrihalomethanes).Clean(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("clean: %w", err)
	}
	if err := validator.ValidateComplete(clean); err != nil {
		return nil, nil, err
	}
	r.Logger.Infow("dataset cleaned",
		"rows_before", report.RowsBefore,
		"rows_after", report.RowsAfter,
		"imputed", report.Imputed)

	desc.Clean = report
	desc.CleanInfo = describe.Info(clean)
	desc.Correlation = describe.Correlation(clean)
	return desc, clean, nil
}

// Prepare scales the predictors and splits the rows. With fit_on "train"
// the scaler only sees training rows.
func (r *Runner) Prepare(clean *data.Table) (*Dataset, error) {
	y, err := preprocessing.BinaryLabels(clean, data.ColumnPotability)
	if err != nil {
		return nil, err
	}
	validator := data.NewDataValidator()
	if err := validator.ValidateLabels(y); err != nil {
		return nil, err
	}

	X, err := clean.Features(data.PredictorColumns)
	if err != nil {
		return nil, err
	}

	splitter := evaluation.NewTrainTestSplitter(r.Config.Split.TestSize, r.Config.Split.Seed, true)
	train, test, err := splitter.SplitIndices(y)
	if err != nil {
		return nil, err
	}

	scaler := preprocessing.NewScaler(r.Config.Scaling.Method)
	var scaled *data.Frame
	switch r.Config.Scaling.FitOn {
	case config.FitOnTrain:
		trainRows := make([][]decimal.Decimal, len(train))
		for i, idx := range train {
			trainRows[i] = X[idx]
		}
		if err := scaler.Fit(trainRows); err != nil {
			return nil, fmt.Errorf("scale: %w", err)
		}
		scaled, err = scaler.TransformTable(clean, data.PredictorColumns)
	default:
		scaled, err = scaler.ScaleTable(clean, data.PredictorColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	if err := validator.ValidateDataset(scaled.Rows, y); err != nil {
		return nil, err
	}

	r.Logger.Infow("dataset split",
		"train", len(train),
		"test", len(test),
		"scaling", scaler.ScaleType,
		"fit_on", r.Config.Scaling.FitOn)

	return &Dataset{
		Features: scaled.Columns,
		Classes:  []int{0, 1},
		Split:    evaluation.SplitByIndices(scaled.Rows, y, train, test),
	}, nil
}

// Trainers builds the enabled trainers from configuration, in report order.
func (r *Runner) Trainers() ([]Trainer, error) {
	cfg := r.Config
	enabled := make(map[string]bool)
	for _, name := range cfg.Models.Enabled {
		known := false
		for _, a := range models.Algorithms {
			if a == name {
				known = true
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown model %q in models.enabled", name)
		}
		enabled[name] = true
	}

	var trainers []Trainer
	if enabled[models.AlgorithmDecisionTree] {
		dt := cfg.DecisionTree
		if dt.Baseline {
			base := models.DefaultDecisionTreeConfig()
			base.Seed = dt.Seed
			trainers = append(trainers, &BaselineTreeTrainer{Config: base})
		}
		tuned := models.DefaultDecisionTreeConfig()
		tuned.ClassWeight = dt.ClassWeights()
		tuned.Seed = dt.Seed
		grid := evaluation.Grid{
			"criterion":         toAny(dt.Criterion),
			"splitter":          toAny(dt.Splitter),
			"max_depth":         toAny(dt.MaxDepth),
			"min_samples_split": toAny(dt.MinSamplesSplit),
			"min_samples_leaf":  toAny(dt.MinSamplesLeaf),
		}
		trainers = append(trainers, NewTreeSearchTrainer(tuned, pruneEmpty(grid), cfg.CV.Folds, cfg.CV.Workers, r.Logger))
	}
	if enabled[models.AlgorithmLogisticRegression] {
		lr := models.DefaultLogisticRegressionConfig()
		lr.C = cfg.LogisticRegression.C
		lr.ClassWeight = cfg.LogisticRegression.ClassWeight
		if cfg.LogisticRegression.MaxIter > 0 {
			lr.MaxIter = cfg.LogisticRegression.MaxIter
		}
		trainers = append(trainers, &LogisticTrainer{Config: lr, Logger: r.Logger})
	}
	if enabled[models.AlgorithmKNN] {
		base := models.KNNConfig{K: 5, Distance: cfg.KNN.Distance}
		grid := pruneEmpty(evaluation.Grid{"n_neighbors": toAny(cfg.KNN.NNeighbors)})
		trainers = append(trainers, NewKNNSearchTrainer(base, grid, cfg.CV.Folds, cfg.CV.Workers, r.Logger))
	}
	if enabled[models.AlgorithmSVC] {
		svc := models.DefaultSVCConfig()
		svc.C = cfg.SVC.C
		svc.Kernel = cfg.SVC.Kernel
		svc.Gamma = cfg.SVC.Gamma
		svc.Seed = cfg.SVC.Seed
		trainers = append(trainers, &SVCTrainer{Config: svc})
	}
	if enabled[models.AlgorithmRandomForest] {
		rf := models.DefaultRandomForestConfig()
		rf.NTrees = cfg.RandomForest.NEstimators
		rf.MaxDepth = cfg.RandomForest.MaxDepth
		rf.MinSamplesLeaf = cfg.RandomForest.MinSamplesLeaf
		rf.Seed = cfg.RandomForest.Seed
		trainers = append(trainers, &ForestTrainer{Config: rf, Workers: cfg.RandomForest.Workers})
	}
	return trainers, nil
}

// Run executes the whole pipeline. Data stage failures abort the run; a
// failing trainer is recorded on its job and the others still run.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now(), ScalingFit: r.Config.Scaling.FitOn}

	desc, clean, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	report.Description = desc

	ds, err := r.Prepare(clean)
	if err != nil {
		return nil, err
	}
	report.TrainRows = len(ds.Split.YTrain)
	report.TestRows = len(ds.Split.YTest)

	trainers, err := r.Trainers()
	if err != nil {
		return nil, err
	}

	for _, trainer := range trainers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trainer := trainer
		job := r.Jobs.CreateJob(trainer.Algorithm(), trainer.Name())
		r.Logger.Infow("training", "model", trainer.Name(), "job", job.ID)

		err := r.Jobs.Run(ctx, job, func(ctx context.Context, job *jobs.Job) (any, error) {
			res, err := trainer.Train(ctx, ds)
			if err != nil {
				return nil, err
			}
			job.AddLog(fmt.Sprintf("test accuracy %.4f", res.Test.Accuracy))
			return res, nil
		})
		if err != nil {
			if job.GetStatus() == jobs.JobCancelled {
				r.Logger.Warnw("trainer cancelled", "model", trainer.Name(), "job", job.ID)
				return nil, err
			}
			r.Logger.Errorw("trainer failed", "model", trainer.Name(), "job", job.ID, "error", err)
			continue
		}
		report.Results = append(report.Results, job.GetResult().(*ModelResult))
	}

	for _, job := range r.Jobs.ListJobs() {
		s := JobSummary{ID: job.ID, Name: job.Description, Status: job.GetStatus(), Duration: job.Duration()}
		if err := job.GetError(); err != nil {
			s.Error = err.Error()
		}
		report.Jobs = append(report.Jobs, s)
	}

	if err := r.WriteOutputs(report); err != nil {
		return report, err
	}
	return report, nil
}

// WriteOutputs writes the optional figures, results CSV and run report.
func (r *Runner) WriteOutputs(report *RunReport) error {
	out := r.Config.Output
	if out.FiguresDir != "" {
		files, err := render.WriteAll(out.FiguresDir, figureSet(report))
		if err != nil {
			return fmt.Errorf("render figures: %w", err)
		}
		report.Figures = files
		r.Logger.Infow("figures written", "dir", out.FiguresDir, "count", len(files))
	}
	if out.ResultsCSV != "" {
		if err := ExportResults(report.Results, out.ResultsCSV); err != nil {
			return fmt.Errorf("export results: %w", err)
		}
		r.Logger.Infow("results written", "path", out.ResultsCSV)
	}
	if out.ReportPath != "" {
		if err := persistence.SaveReport(report, out.ReportPath); err != nil {
			return err
		}
		r.Logger.Infow("report written", "path", out.ReportPath)
	}
	return nil
}

// DescriptionFigures lists the histogram and correlation figures.
func DescriptionFigures(d *Description) []render.Figure {
	if d == nil {
		return nil
	}
	var figs []render.Figure
	for _, h := range d.Histograms {
		if len(h.Values) > 0 {
			figs = append(figs, render.HistogramFigure(h))
		}
	}
	if len(d.Correlation.Columns) > 0 {
		figs = append(figs, render.CorrelationFigure(d.Correlation))
	}
	return figs
}

// figureSet lists every figure a run can draw.
func figureSet(report *RunReport) []render.Figure {
	figs := DescriptionFigures(report.Description)
	for _, res := range report.Results {
		slug := render.Slug(res.Name)
		figs = append(figs,
			render.ConfusionFigure(filepath.Join("confusion", slug+"_train"), res.Name+" (train)", res.Train, TargetNames),
			render.ConfusionFigure(filepath.Join("confusion", slug+"_test"), res.Name+" (test)", res.Test, TargetNames),
		)
		if len(res.Importances) > 0 {
			sorted := res.SortedImportances()
			names := make([]string, len(sorted))
			values := make([]float64, len(sorted))
			for i, fi := range sorted {
				names[i] = fi.Feature
				values[i] = fi.Importance
			}
			figs = append(figs, render.ImportanceFigure(filepath.Join("importance", slug), res.Name+" feature importance", names, values))
		}
		if res.PR != nil {
			figs = append(figs, render.PRCurveFigure(filepath.Join("pr_curve", slug), res.Name+" precision/recall", res.PR.Curve))
		}
	}
	return figs
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// pruneEmpty drops keys with no candidates so the base config keeps them.
func pruneEmpty(g evaluation.Grid) evaluation.Grid {
	out := evaluation.Grid{}
	for k, v := range g {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}
