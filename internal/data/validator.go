package data

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFetch          = errors.New("fetch dataset")
	ErrMalformedCSV   = errors.New("malformed csv")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrMissingValue   = errors.New("missing value")
	ErrEmptyDataset   = errors.New("dataset is empty")
)

type DataValidator struct {
	Predictors []string
	Label      string
}

func NewDataValidator() *DataValidator {
	return &DataValidator{
		Predictors: PredictorColumns,
		Label:      ColumnPotability,
	}
}

// ValidateSchema checks that every expected column is present.
func (dv *DataValidator) ValidateSchema(t *Table) error {
	if t == nil || t.NumRows() == 0 {
		return ErrEmptyDataset
	}

	var missing []string
	for _, col := range append(append([]string{}, dv.Predictors...), dv.Label) {
		if t.ColumnIndex(col) < 0 {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateComplete fails on the first missing cell.
func (dv *DataValidator) ValidateComplete(t *Table) error {
	for i, row := range t.Rows {
		for j, cell := range row {
			if !cell.Valid {
				return fmt.Errorf("%w: row %d, column %q", ErrMissingValue, i, t.Columns[j])
			}
		}
	}
	return nil
}

func (dv *DataValidator) ValidateLabels(y []int) error {
	if len(y) == 0 {
		return fmt.Errorf("labels are empty")
	}

	classCount := make(map[int]int)
	for _, label := range y {
		if label != 0 && label != 1 {
			return fmt.Errorf("%w: label %d is not binary", ErrSchemaMismatch, label)
		}
		classCount[label]++
	}

	if len(classCount) < 2 {
		return fmt.Errorf("dataset must have at least 2 classes, found %d", len(classCount))
	}

	return nil
}

func (dv *DataValidator) ValidateDataset(X [][]float64, y []int) error {
	if len(X) == 0 {
		return ErrEmptyDataset
	}

	if len(X) != len(y) {
		return fmt.Errorf("feature matrix and labels have different lengths: %d vs %d", len(X), len(y))
	}

	nFeatures := len(X[0])
	if nFeatures == 0 {
		return fmt.Errorf("features cannot be empty")
	}

	for i, sample := range X {
		if len(sample) != nFeatures {
			return fmt.Errorf("inconsistent feature count at sample %d: expected %d, got %d", i, nFeatures, len(sample))
		}
	}

	return nil
}
