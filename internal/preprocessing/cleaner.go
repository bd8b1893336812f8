package preprocessing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"potability/internal/data"
)

// CleanReport summarises what Clean changed.
type CleanReport struct {
	RowsBefore  int `json:"rows_before" yaml:"rows_before"`
	RowsAfter   int `json:"rows_after" yaml:"rows_after"`
	RowsDropped int `json:"rows_dropped" yaml:"rows_dropped"`
	// Fills holds the mean written into each imputed column.
	Fills map[string]decimal.Decimal `json:"fills" yaml:"fills"`
	// Imputed counts replaced cells per column.
	Imputed map[string]int `json:"imputed" yaml:"imputed"`
}

// Cleaner drops rows missing DropColumn, then mean-imputes every other
// column that still has gaps.
type Cleaner struct {
	DropColumn string
}

func NewCleaner(dropColumn string) *Cleaner {
	return &Cleaner{DropColumn: dropColumn}
}

// Clean never mutates t. The returned table has no missing cells and at
// most as many rows as t.
func (c *Cleaner) Clean(t *data.Table) (*data.Table, CleanReport, error) {
	report := CleanReport{
		RowsBefore: t.NumRows(),
		Fills:      make(map[string]decimal.Decimal),
		Imputed:    make(map[string]int),
	}

	dropIdx := t.ColumnIndex(c.DropColumn)
	if dropIdx < 0 {
		return nil, report, fmt.Errorf("%w: column %q not found", data.ErrSchemaMismatch, c.DropColumn)
	}

	out := data.NewTable(t.Columns)
	for _, row := range t.Rows {
		if !row[dropIdx].Valid {
			continue
		}
		kept := make([]decimal.NullDecimal, len(row))
		copy(kept, row)
		out.Rows = append(out.Rows, kept)
	}
	report.RowsAfter = out.NumRows()
	report.RowsDropped = report.RowsBefore - report.RowsAfter
	if out.NumRows() == 0 {
		return nil, report, fmt.Errorf("%w: every row is missing %q", data.ErrEmptyDataset, c.DropColumn)
	}

	for j, name := range out.Columns {
		mean, missing, ok := columnMean(out, j)
		if missing == 0 {
			continue
		}
		if !ok {
			return nil, report, fmt.Errorf("%w: column %q has no values to impute from", data.ErrMissingValue, name)
		}
		for _, row := range out.Rows {
			if !row[j].Valid {
				row[j] = decimal.NewNullDecimal(mean)
			}
		}
		report.Fills[name] = mean
		report.Imputed[name] = missing
	}

	return out, report, nil
}

// columnMean averages the present cells of column j. ok is false when the
// column has no present cells.
func columnMean(t *data.Table, j int) (mean decimal.Decimal, missing int, ok bool) {
	sum := decimal.Zero
	n := 0
	for _, row := range t.Rows {
		if !row[j].Valid {
			missing++
			continue
		}
		sum = sum.Add(row[j].Decimal)
		n++
	}
	if n == 0 {
		return decimal.Zero, missing, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), missing, true
}
