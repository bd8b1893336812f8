package commander

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"potability/internal/config"
	"potability/internal/experiment"
	"potability/internal/render"
)

// sourceFlags override the dataset location and outputs of the loaded config.
type sourceFlags struct {
	path    string
	url     string
	figures string
	results string
	report  string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "data", "", "local CSV file (overrides source.path)")
	cmd.Flags().StringVar(&f.url, "url", "", "dataset URL (overrides source.url)")
	cmd.Flags().StringVar(&f.figures, "figures", "", "directory for PNG figures (overrides output.figures_dir)")
}

func (f *sourceFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.Source.Path = f.path
	}
	if flags.Changed("url") {
		cfg.Source.URL = f.url
		if !flags.Changed("data") {
			cfg.Source.Path = ""
		}
	}
	if flags.Changed("figures") {
		cfg.Output.FiguresDir = f.figures
	}
	if flags.Changed("results") {
		cfg.Output.ResultsCSV = f.results
	}
	if flags.Changed("report") {
		cfg.Output.ReportPath = f.report
	}
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		src    sourceFlags
		fitOn  string
		seed   int64
		models []string
		logs   bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: describe, clean, scale, split, train and compare",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			src.apply(cmd, cfg)
			if cmd.Flags().Changed("fit-on") {
				cfg.Scaling.FitOn = fitOn
			}
			if cmd.Flags().Changed("seed") {
				cfg.Split.Seed = seed
			}
			if cmd.Flags().Changed("models") {
				cfg.Models.Enabled = models
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			runner := experiment.NewRunner(cfg, logger)
			report, err := runner.Run(cmd.Context())
			if report == nil {
				return err
			}

			p := NewPrinter(opts.out)
			p.Description(report.Description)
			p.Results(report)
			if logs {
				for _, job := range runner.Jobs.ListJobs() {
					fmt.Fprintf(opts.out, "\n%s\n", p.cyan(fmt.Sprintf("Logs for job %s:", job.ID)))
					for _, line := range job.GetLogs() {
						fmt.Fprintln(opts.out, line)
					}
				}
			}
			if err != nil {
				return err
			}
			for _, path := range []string{cfg.Output.ResultsCSV, cfg.Output.ReportPath} {
				if path != "" {
					p.Success("Wrote %s", path)
				}
			}
			if n := len(report.Figures); n > 0 {
				p.Success("Wrote %d figures to %s", n, cfg.Output.FiguresDir)
			}
			if failed := runner.Jobs.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d models failed", len(failed), len(report.Jobs))
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&src.results, "results", "", "results CSV path (overrides output.results_csv)")
	cmd.Flags().StringVar(&src.report, "report", "", "JSON or YAML run report path (overrides output.report_path)")
	cmd.Flags().StringVar(&fitOn, "fit-on", config.FitOnAll, "fit the scaler on \"all\" rows or on \"train\" rows only")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for the stratified split")
	cmd.Flags().StringSliceVar(&models, "models", nil, "models to train (decision_tree, logistic_regression, knn, svc, random_forest)")
	cmd.Flags().BoolVar(&logs, "job-logs", false, "print per model job logs")
	return cmd
}

func newDescribeCommand(opts *rootOptions) *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Load, describe and clean the dataset without training",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			src.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			desc, _, err := experiment.NewRunner(cfg, logger).Describe(cmd.Context())
			if err != nil {
				return err
			}
			p := NewPrinter(opts.out)
			p.Description(desc)

			if cfg.Output.FiguresDir != "" {
				files, err := render.WriteAll(cfg.Output.FiguresDir, experiment.DescriptionFigures(desc))
				if err != nil {
					return fmt.Errorf("render figures: %w", err)
				}
				p.Success("Wrote %d figures to %s", len(files), cfg.Output.FiguresDir)
			}
			return nil
		},
	}
	src.register(cmd)
	return cmd
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View or create potability configuration",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "potability.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			NewPrinter(opts.out).Success("Wrote %s", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			b, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = opts.out.Write(b)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(opts.out, "potability %s\n", Version)
		},
	}
}
