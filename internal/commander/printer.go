package commander

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"potability/internal/describe"
	"potability/internal/evaluation"
	"potability/internal/experiment"
	"potability/internal/jobs"
	"potability/internal/preprocessing"
)

// Printer renders pipeline output for a terminal.
type Printer struct {
	out io.Writer

	green  func(a ...any) string
	red    func(a ...any) string
	yellow func(a ...any) string
	cyan   func(a ...any) string
	blue   func(a ...any) string
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:    out,
		green:  color.New(color.FgGreen).SprintFunc(),
		red:    color.New(color.FgRed).SprintFunc(),
		yellow: color.New(color.FgYellow).SprintFunc(),
		cyan:   color.New(color.FgCyan).SprintFunc(),
		blue:   color.New(color.FgBlue).SprintFunc(),
	}
}

func (p *Printer) heading(text string) {
	fmt.Fprintf(p.out, "\n%s\n", p.cyan(text))
	fmt.Fprintln(p.out, strings.Repeat("─", len([]rune(text))))
}

func (p *Printer) table(header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(p.out)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	return t
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4f", v)
}

func (p *Printer) Description(d *experiment.Description) {
	p.Info("Raw dataset", d.RawInfo)
	p.Summary(d.Summary)
	p.Clean(d.Clean)
	p.Info("Cleaned dataset", d.CleanInfo)
	p.Correlation(d.Correlation)
}

func (p *Printer) Info(title string, info []describe.ColumnInfo) {
	p.heading(title)
	t := p.table([]string{"Column", "Non-Null", "Missing", "Unique", "Dtype"})
	for _, ci := range info {
		t.Append([]string{ci.Column, fmt.Sprint(ci.NonNull), fmt.Sprint(ci.Missing), fmt.Sprint(ci.Unique), ci.Dtype})
	}
	t.Render()
}

func (p *Printer) Summary(summary []describe.ColumnSummary) {
	p.heading("Summary statistics")
	t := p.table([]string{"Column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"})
	for _, s := range summary {
		t.Append([]string{
			s.Column,
			fmt.Sprint(s.Count),
			num(s.Mean), num(s.Std), num(s.Min), num(s.Q25), num(s.Median), num(s.Q75), num(s.Max),
		})
	}
	t.Render()
}

func (p *Printer) Clean(r preprocessing.CleanReport) {
	p.heading("Cleaning")
	fmt.Fprintf(p.out, "Rows: %d -> %d (%d dropped)\n", r.RowsBefore, r.RowsAfter, r.RowsDropped)
	columns := make([]string, 0, len(r.Fills))
	for column := range r.Fills {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		fmt.Fprintf(p.out, "  %s: %d missing filled with %s\n",
			column, r.Imputed[column], r.Fills[column].StringFixed(4))
	}
}

func (p *Printer) Correlation(m describe.Matrix) {
	p.heading("Correlation matrix")
	header := append([]string{""}, m.Columns...)
	t := p.table(header)
	for i, name := range m.Columns {
		row := []string{name}
		for _, v := range m.Values[i] {
			if math.IsNaN(v) {
				row = append(row, "NaN")
			} else {
				row = append(row, fmt.Sprintf("%.2f", v))
			}
		}
		t.Append(row)
	}
	t.Render()
}

// Results prints the per model reports followed by a comparison table.
func (p *Printer) Results(report *experiment.RunReport) {
	fmt.Fprintf(p.out, "\n%s train rows: %d, test rows: %d, scaler fit on: %s\n",
		p.blue("▶"), report.TrainRows, report.TestRows, report.ScalingFit)

	for _, res := range report.Results {
		p.Model(res)
	}
	if len(report.Results) > 0 {
		p.Comparison(report.Results)
	}
	p.Jobs(report.Jobs)
}

func (p *Printer) Model(res *experiment.ModelResult) {
	p.heading(res.Name)
	fmt.Fprintf(p.out, "Parameters: %s\n", experiment.FormatParams(res.Params))
	fmt.Fprintf(p.out, "Training time: %s\n", res.TrainingTime.Round(1e6))

	if s := res.Search; s != nil {
		best := s.Candidates[s.BestIndex].CV
		fmt.Fprintf(p.out, "Best parameters: %s\n", experiment.FormatParams(s.BestParams))
		fmt.Fprintf(p.out, "Best CV accuracy: %.4f (± %.4f) over %d candidates\n", s.BestScore, best.Std, len(s.Candidates))
	}

	for _, split := range []struct {
		name string
		m    *evaluation.ClassificationMetrics
	}{{"Train", res.Train}, {"Test", res.Test}} {
		if split.m == nil {
			continue
		}
		fmt.Fprintf(p.out, "\n%s accuracy: %s\n", split.name, p.green(fmt.Sprintf("%.4f", split.m.Accuracy)))
		fmt.Fprintln(p.out, evaluation.FormatReport(split.m, experiment.TargetNames))
		fmt.Fprintln(p.out, evaluation.FormatConfusionMatrix(split.m))
		fmt.Fprintf(p.out, "Cost: %d false positives, %d false negatives, total %.0f\n",
			split.m.Cost.FalsePositives, split.m.Cost.FalseNegatives, split.m.Cost.Total)
		for _, w := range split.m.Warnings {
			fmt.Fprintf(p.out, "%s %s\n", p.yellow("⚠"), w)
		}
	}

	if len(res.Importances) > 0 {
		fmt.Fprintln(p.out)
		t := p.table([]string{"Feature", "Importance"})
		for _, fi := range res.SortedImportances() {
			t.Append([]string{fi.Feature, num(fi.Importance)})
		}
		t.Render()
	}

	if res.PR != nil {
		fmt.Fprintf(p.out, "Balanced threshold: %.4f (precision %.4f, recall %.4f)\n",
			res.PR.Threshold, res.PR.Precision, res.PR.Recall)
	}
}

func (p *Printer) Comparison(results []*experiment.ModelResult) {
	p.heading("Model comparison")
	t := p.table([]string{"Model", "Train Acc", "Test Acc", "Test F1", "Test Cost", "Time"})
	best := 0
	for i, res := range results {
		t.Append([]string{
			res.Name,
			num(res.Train.Accuracy),
			num(res.Test.Accuracy),
			num(res.Test.MacroF1),
			fmt.Sprintf("%.0f", res.Test.Cost.Total),
			res.TrainingTime.Round(1e6).String(),
		})
		if res.Test.Accuracy > results[best].Test.Accuracy {
			best = i
		}
	}
	t.Render()
	fmt.Fprintf(p.out, "\n%s Best model: %s (test accuracy: %.4f)\n",
		p.green("★"), results[best].Name, results[best].Test.Accuracy)
}

func (p *Printer) Jobs(summaries []experiment.JobSummary) {
	if len(summaries) == 0 {
		return
	}
	p.heading("Jobs")
	for _, s := range summaries {
		statusColor := p.yellow
		switch s.Status {
		case jobs.JobCompleted:
			statusColor = p.green
		case jobs.JobFailed:
			statusColor = p.red
		case jobs.JobRunning:
			statusColor = p.cyan
		}
		line := fmt.Sprintf("%-36s %-10s %-32s %s", s.ID, statusColor(string(s.Status)), s.Name, s.Duration.Round(1e6))
		if s.Error != "" {
			line += " " + p.red(s.Error)
		}
		fmt.Fprintln(p.out, line)
	}
}

func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", p.green("✓"), fmt.Sprintf(format, args...))
}
