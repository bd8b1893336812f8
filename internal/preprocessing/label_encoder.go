package preprocessing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"potability/internal/data"
)

// LabelEncoder maps raw label strings to consecutive ints. Classes are
// ordered by numeric value when every label parses as a number, otherwise
// lexically, so the encoding is stable across runs.
type LabelEncoder struct {
	ClassToInt map[string]int
	IntToClass map[int]string
	IsFitted   bool
}

func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{
		ClassToInt: make(map[string]int),
		IntToClass: make(map[int]string),
		IsFitted:   false,
	}
}

func (le *LabelEncoder) Fit(labels []string) {
	le.ClassToInt = make(map[string]int)
	le.IntToClass = make(map[int]string)

	uniqueLabels := make(map[string]bool)
	for _, label := range labels {
		uniqueLabels[label] = true
	}

	ordered := make([]string, 0, len(uniqueLabels))
	for label := range uniqueLabels {
		ordered = append(ordered, label)
	}
	sortLabels(ordered)

	for idx, label := range ordered {
		le.ClassToInt[label] = idx
		le.IntToClass[idx] = label
	}

	le.IsFitted = true
}

func sortLabels(labels []string) {
	numeric := make(map[string]decimal.Decimal, len(labels))
	for _, l := range labels {
		d, err := decimal.NewFromString(l)
		if err != nil {
			sort.Strings(labels)
			return
		}
		numeric[l] = d
	}
	sort.Slice(labels, func(i, j int) bool {
		return numeric[labels[i]].LessThan(numeric[labels[j]])
	})
}

func (le *LabelEncoder) Transform(labels []string) ([]int, error) {
	if !le.IsFitted {
		return nil, fmt.Errorf("LabelEncoder must be fitted before transform")
	}

	result := make([]int, len(labels))
	for i, label := range labels {
		if val, ok := le.ClassToInt[label]; ok {
			result[i] = val
		} else {
			return nil, fmt.Errorf("unknown label: %s", label)
		}
	}

	return result, nil
}

// BinaryLabels reads a 0/1 label column. Values must already be 0 or 1 so
// that class 1 keeps meaning "potable" after encoding.
func BinaryLabels(t *data.Table, column string) ([]int, error) {
	raw, err := t.ColumnStrings(column)
	if err != nil {
		return nil, err
	}
	for i, v := range raw {
		if v != "0" && v != "1" {
			return nil, fmt.Errorf("%w: row %d label %q is not 0 or 1", data.ErrSchemaMismatch, i, v)
		}
	}
	// both classes are fitted even when one is absent so 1 stays "potable"
	encoder := NewLabelEncoder()
	encoder.Fit([]string{"1", "0"})
	return encoder.Transform(raw)
}
