package data

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	ColumnPH              = "ph"
	ColumnHardness        = "Hardness"
	ColumnSolids          = "Solids"
	ColumnChloramines     = "Chloramines"
	ColumnSulfate         = "Sulfate"
	ColumnConductivity    = "Conductivity"
	ColumnOrganicCarbon   = "Organic_carbon"
	ColumnTrihalomethanes = "Trihalomethanes"
	ColumnTurbidity       = "Turbidity"
	ColumnPotability      = "Potability"
)

// PredictorColumns lists the nine measurements in dataset order.
var PredictorColumns = []string{
	ColumnPH,
	ColumnHardness,
	ColumnSolids,
	ColumnChloramines,
	ColumnSulfate,
	ColumnConductivity,
	ColumnOrganicCarbon,
	ColumnTrihalomethanes,
	ColumnTurbidity,
}

// Table is a column-named grid of nullable decimal cells. A cell that was
// empty in the source is stored with Valid == false.
type Table struct {
	Columns []string
	Rows    [][]decimal.NullDecimal
}

func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) NumRows() int {
	return len(t.Rows)
}

func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// ColumnIndex returns the position of name or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (t *Table) Column(name string) ([]decimal.NullDecimal, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, name)
	}
	values := make([]decimal.NullDecimal, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// ColumnFloats returns the valid cells of a column as float64, skipping
// missing ones.
func (t *Table) ColumnFloats(name string) ([]float64, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	values := make([]float64, 0, len(cells))
	for _, c := range cells {
		if !c.Valid {
			continue
		}
		f, _ := c.Decimal.Float64()
		values = append(values, f)
	}
	return values, nil
}

func (t *Table) AppendRow(row []decimal.NullDecimal) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// MissingCounts maps every column to its number of missing cells.
func (t *Table) MissingCounts() map[string]int {
	counts := make(map[string]int, len(t.Columns))
	for _, c := range t.Columns {
		counts[c] = 0
	}
	for _, row := range t.Rows {
		for j, cell := range row {
			if !cell.Valid {
				counts[t.Columns[j]]++
			}
		}
	}
	return counts
}

func (t *Table) TotalMissing() int {
	total := 0
	for _, n := range t.MissingCounts() {
		total += n
	}
	return total
}

// Features extracts the given columns as a dense decimal matrix. Every
// requested cell must be present.
func (t *Table) Features(columns []string) ([][]decimal.Decimal, error) {
	idx := make([]int, len(columns))
	for j, name := range columns {
		idx[j] = t.ColumnIndex(name)
		if idx[j] < 0 {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, name)
		}
	}

	X := make([][]decimal.Decimal, len(t.Rows))
	for i, row := range t.Rows {
		X[i] = make([]decimal.Decimal, len(columns))
		for j, col := range idx {
			if !row[col].Valid {
				return nil, fmt.Errorf("%w: row %d column %q", ErrMissingValue, i, columns[j])
			}
			X[i][j] = row[col].Decimal
		}
	}
	return X, nil
}

// ColumnStrings renders a column's cells as text; missing cells are an
// error because callers use this for categorical values such as labels.
func (t *Table) ColumnStrings(name string) ([]string, error) {
	cells, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	raw := make([]string, len(cells))
	for i, c := range cells {
		if !c.Valid {
			return nil, fmt.Errorf("%w: row %d column %q", ErrMissingValue, i, name)
		}
		raw[i] = c.Decimal.String()
	}
	return raw, nil
}

// Frame is a dense float64 view of predictor columns, used once values are
// scaled and no longer need exact decimal storage.
type Frame struct {
	Columns []string
	Rows    [][]float64
}

func (f *Frame) NumRows() int {
	return len(f.Rows)
}

func (f *Frame) Column(j int) []float64 {
	out := make([]float64, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[j]
	}
	return out
}
