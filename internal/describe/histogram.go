package describe

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"potability/internal/data"
)

const DefaultBins = 10

// Histogram holds equal-width bins; Edges has len(Counts)+1 entries and the
// last bin includes its right edge.
type Histogram struct {
	Column string    `json:"column" yaml:"column"`
	Edges  []float64 `json:"edges" yaml:"edges"`
	Counts []float64 `json:"counts" yaml:"counts"`
	Values []float64 `json:"-" yaml:"-"`
}

func Histograms(t *data.Table, columns []string, bins int) ([]Histogram, error) {
	if bins <= 0 {
		bins = DefaultBins
	}
	out := make([]Histogram, 0, len(columns))
	for _, name := range columns {
		values, err := t.ColumnFloats(name)
		if err != nil {
			return nil, err
		}
		out = append(out, histogram(name, values, bins))
	}
	return out, nil
}

func histogram(name string, values []float64, bins int) Histogram {
	h := Histogram{Column: name, Values: values, Counts: make([]float64, bins)}
	if len(values) == 0 {
		return h
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	h.Edges = make([]float64, bins+1)
	floats.Span(h.Edges, lo, hi)

	dividers := append([]float64(nil), h.Edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	stat.Histogram(h.Counts, dividers, sorted, nil)
	return h
}
