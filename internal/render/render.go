// Package render draws the pipeline's figures as PNG files.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"potability/internal/describe"
	"potability/internal/evaluation"
)

var ErrNoData = errors.New("nothing to plot")

// Figure is a deferred plot. Name is a slash separated path relative to the
// figures directory, without extension.
type Figure struct {
	Name   string
	Width  vg.Length
	Height vg.Length
	Draw   func() (*plot.Plot, error)
}

// WriteAll renders every figure under dir as PNG and returns the written
// paths in input order. It stops at the first failure.
func WriteAll(dir string, figs []Figure) ([]string, error) {
	paths := make([]string, 0, len(figs))
	for _, fig := range figs {
		p, err := fig.Draw()
		if err != nil {
			return paths, fmt.Errorf("%s: %w", fig.Name, err)
		}
		path := filepath.Join(dir, filepath.FromSlash(fig.Name)+".png")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return paths, err
		}
		w, h := fig.Width, fig.Height
		if w == 0 {
			w = 4 * vg.Inch
		}
		if h == 0 {
			h = 4 * vg.Inch
		}
		if err := p.Save(w, h, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Slug turns a display name into a file name: lower case, runs of anything
// other than letters and digits collapse to one underscore.
func Slug(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

func HistogramFigure(h describe.Histogram) Figure {
	return Figure{
		Name: filepath.ToSlash(filepath.Join("histograms", Slug(h.Column))),
		Draw: func() (*plot.Plot, error) {
			if len(h.Values) == 0 {
				return nil, fmt.Errorf("%w: column %s has no values", ErrNoData, h.Column)
			}
			bins := len(h.Counts)
			if bins == 0 {
				bins = describe.DefaultBins
			}
			hist, err := plotter.NewHist(plotter.Values(h.Values), bins)
			if err != nil {
				return nil, err
			}
			hist.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}

			p := plot.New()
			p.Title.Text = h.Column
			p.X.Label.Text = h.Column
			p.Y.Label.Text = "Count"
			p.Add(hist)
			return p, nil
		},
	}
}

// matrixGrid adapts a square matrix to plotter.GridXYZ with row 0 drawn at
// the top.
type matrixGrid struct {
	values [][]float64
}

func (g matrixGrid) Dims() (c, r int)   { return len(g.values), len(g.values) }
func (g matrixGrid) X(c int) float64    { return float64(c) }
func (g matrixGrid) Y(r int) float64    { return float64(r) }
func (g matrixGrid) Z(c, r int) float64 { return g.values[len(g.values)-1-r][c] }

func matrixTicks(labels []string, reversed bool) plot.ConstantTicks {
	ticks := make([]plot.Tick, len(labels))
	for i, label := range labels {
		pos := i
		if reversed {
			pos = len(labels) - 1 - i
		}
		ticks[i] = plot.Tick{Value: float64(pos), Label: label}
	}
	return plot.ConstantTicks(ticks)
}

// annotate writes a formatted value on every matrix cell.
func annotate(p *plot.Plot, values [][]float64, format string) error {
	n := len(values)
	var xys plotter.XYs
	var labels []string
	for i, row := range values {
		for j, v := range row {
			xys = append(xys, plotter.XY{X: float64(j), Y: float64(n - 1 - i)})
			if math.IsNaN(v) {
				labels = append(labels, "nan")
			} else {
				labels = append(labels, fmt.Sprintf(format, v))
			}
		}
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].XAlign = draw.XCenter
		l.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(l)
	return nil
}

func heatMap(p *plot.Plot, values [][]float64, pal palette.Palette, min, max float64) {
	hm := plotter.NewHeatMap(matrixGrid{values: values}, pal)
	hm.Min = min
	hm.Max = max
	hm.NaN = color.Gray{Y: 200}
	p.Add(hm)
}

// CorrelationFigure draws an annotated diverging heat map over [-1, 1].
func CorrelationFigure(m describe.Matrix) Figure {
	return Figure{
		Name:   "correlation",
		Width:  8 * vg.Inch,
		Height: 7 * vg.Inch,
		Draw: func() (*plot.Plot, error) {
			if len(m.Columns) == 0 {
				return nil, fmt.Errorf("%w: empty correlation matrix", ErrNoData)
			}
			cmap := moreland.SmoothBlueRed()
			cmap.SetMin(-1)
			cmap.SetMax(1)

			p := plot.New()
			p.Title.Text = "Correlation matrix"
			heatMap(p, m.Values, cmap.Palette(255), -1, 1)
			if err := annotate(p, m.Values, "%.2f"); err != nil {
				return nil, err
			}
			p.X.Tick.Marker = matrixTicks(m.Columns, false)
			p.X.Tick.Label.Rotation = math.Pi / 4
			p.X.Tick.Label.XAlign = draw.XRight
			p.Y.Tick.Marker = matrixTicks(m.Columns, true)
			return p, nil
		},
	}
}

// ConfusionFigure draws counts with actual classes on rows and predicted
// classes on columns.
func ConfusionFigure(name, title string, m *evaluation.ClassificationMetrics, labels []string) Figure {
	return Figure{
		Name:   filepath.ToSlash(name),
		Width:  5 * vg.Inch,
		Height: 4 * vg.Inch,
		Draw: func() (*plot.Plot, error) {
			if m == nil || len(m.ConfusionMatrix) == 0 {
				return nil, fmt.Errorf("%w: no confusion matrix", ErrNoData)
			}
			values := make([][]float64, len(m.ConfusionMatrix))
			max := 1.0
			for i, row := range m.ConfusionMatrix {
				values[i] = make([]float64, len(row))
				for j, v := range row {
					values[i][j] = float64(v)
					max = math.Max(max, float64(v))
				}
			}
			names := labels
			if len(names) != len(values) {
				names = make([]string, len(m.Classes))
				for i, c := range m.Classes {
					names[i] = fmt.Sprint(c)
				}
			}

			p := plot.New()
			p.Title.Text = title
			p.X.Label.Text = "Predicted"
			p.Y.Label.Text = "Actual"
			heatMap(p, values, palette.Heat(32, 1), 0, max)
			if err := annotate(p, values, "%.0f"); err != nil {
				return nil, err
			}
			p.X.Tick.Marker = matrixTicks(names, false)
			p.Y.Tick.Marker = matrixTicks(names, true)
			return p, nil
		},
	}
}

// ImportanceFigure draws horizontal bars; the first entry ends up on top.
func ImportanceFigure(name, title string, names []string, values []float64) Figure {
	return Figure{
		Name:   filepath.ToSlash(name),
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
		Draw: func() (*plot.Plot, error) {
			if len(values) == 0 || len(names) != len(values) {
				return nil, fmt.Errorf("%w: %d names for %d values", ErrNoData, len(names), len(values))
			}
			n := len(values)
			bars := make(plotter.Values, n)
			labels := make([]string, n)
			for i := range values {
				bars[n-1-i] = values[i]
				labels[n-1-i] = names[i]
			}
			bc, err := plotter.NewBarChart(bars, vg.Points(14))
			if err != nil {
				return nil, err
			}
			bc.Horizontal = true
			bc.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
			bc.LineStyle.Width = 0

			p := plot.New()
			p.Title.Text = title
			p.X.Label.Text = "Importance"
			p.Add(bc)
			p.NominalY(labels...)
			return p, nil
		},
	}
}

// PRCurveFigure plots precision and recall against the decision threshold.
func PRCurveFigure(name, title string, curve *evaluation.PRCurve) Figure {
	return Figure{
		Name:   filepath.ToSlash(name),
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
		Draw: func() (*plot.Plot, error) {
			if curve == nil || len(curve.Thresholds) == 0 {
				return nil, fmt.Errorf("%w: empty curve", ErrNoData)
			}
			precision := make(plotter.XYs, len(curve.Thresholds))
			recall := make(plotter.XYs, len(curve.Thresholds))
			for i, t := range curve.Thresholds {
				precision[i] = plotter.XY{X: t, Y: curve.Precision[i]}
				recall[i] = plotter.XY{X: t, Y: curve.Recall[i]}
			}

			p := plot.New()
			p.Title.Text = title
			p.X.Label.Text = "Threshold"
			p.Y.Min = 0
			p.Y.Max = 1

			pl, err := plotter.NewLine(precision)
			if err != nil {
				return nil, err
			}
			pl.Color = color.RGBA{B: 255, A: 255}
			pl.LineStyle.Width = vg.Points(2)
			pl.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}

			rl, err := plotter.NewLine(recall)
			if err != nil {
				return nil, err
			}
			rl.Color = color.RGBA{G: 160, A: 255}
			rl.LineStyle.Width = vg.Points(2)

			p.Add(pl, rl)
			p.Legend.Add("Precision", pl)
			p.Legend.Add("Recall", rl)
			p.Legend.Top = true
			return p, nil
		},
	}
}
