// Package describe computes read-only descriptive statistics over a sample
// table: column summaries, dtype and cardinality info, pairwise
// correlations and histogram bins.
package describe

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"potability/internal/data"
)

type ColumnSummary struct {
	Column string  `json:"column" yaml:"column"`
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Q25    float64 `json:"q25" yaml:"q25"`
	Median float64 `json:"median" yaml:"median"`
	Q75    float64 `json:"q75" yaml:"q75"`
	Max    float64 `json:"max" yaml:"max"`
}

// Summarize describes each named column over its non-missing cells. The
// standard deviation is the sample (n-1) one and quartiles interpolate
// linearly between order statistics.
func Summarize(t *data.Table, columns []string) ([]ColumnSummary, error) {
	out := make([]ColumnSummary, 0, len(columns))
	for _, name := range columns {
		values, err := t.ColumnFloats(name)
		if err != nil {
			return nil, err
		}
		s := ColumnSummary{Column: name, Count: len(values)}
		if len(values) == 0 {
			nan := math.NaN()
			s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
			out = append(out, s)
			continue
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		s.Mean = stat.Mean(values, nil)
		s.Std = math.NaN()
		if len(values) > 1 {
			s.Std = stat.StdDev(values, nil)
		}
		s.Min = sorted[0]
		s.Max = sorted[len(sorted)-1]
		s.Q25 = quantile(sorted, 0.25)
		s.Median = quantile(sorted, 0.5)
		s.Q75 = quantile(sorted, 0.75)
		out = append(out, s)
	}
	return out, nil
}

// quantile interpolates between the order statistics around (n-1)p.
// sorted must be ascending and non-empty.
func quantile(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

type ColumnInfo struct {
	Column  string `json:"column" yaml:"column"`
	NonNull int    `json:"non_null" yaml:"non_null"`
	Missing int    `json:"missing" yaml:"missing"`
	Unique  int    `json:"unique" yaml:"unique"`
	// Dtype is int64 when every present value is integral, else float64.
	Dtype string `json:"dtype" yaml:"dtype"`
}

func Info(t *data.Table) []ColumnInfo {
	out := make([]ColumnInfo, len(t.Columns))
	for j, name := range t.Columns {
		info := ColumnInfo{Column: name, Dtype: "int64"}
		seen := make(map[string]struct{})
		for _, row := range t.Rows {
			cell := row[j]
			if !cell.Valid {
				info.Missing++
				continue
			}
			info.NonNull++
			seen[cell.Decimal.String()] = struct{}{}
			if !cell.Decimal.IsInteger() {
				info.Dtype = "float64"
			}
		}
		if info.Missing > 0 {
			// a missing cell forces a float column
			info.Dtype = "float64"
		}
		info.Unique = len(seen)
		out[j] = info
	}
	return out
}

// Matrix is a square matrix over named columns.
type Matrix struct {
	Columns []string    `json:"columns" yaml:"columns"`
	Values  [][]float64 `json:"values" yaml:"values"`
}

func (m Matrix) At(a, b string) (float64, error) {
	i, j := -1, -1
	for k, name := range m.Columns {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, fmt.Errorf("%w: %q or %q not in matrix", data.ErrSchemaMismatch, a, b)
	}
	return m.Values[i][j], nil
}

// Correlation computes Pearson coefficients between every pair of columns
// over the rows where both cells are present. Constant columns yield NaN.
func Correlation(t *data.Table) Matrix {
	n := len(t.Columns)
	m := Matrix{Columns: append([]string(nil), t.Columns...), Values: make([][]float64, n)}
	for i := range m.Values {
		m.Values[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var x, y []float64
			for _, row := range t.Rows {
				if !row[i].Valid || !row[j].Valid {
					continue
				}
				x = append(x, row[i].Decimal.InexactFloat64())
				y = append(y, row[j].Decimal.InexactFloat64())
			}
			r := math.NaN()
			if len(x) > 1 {
				r = stat.Correlation(x, y, nil)
			}
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}
