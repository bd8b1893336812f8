package preprocessing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"potability/internal/data"
)

const (
	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
	ScaleRaw      = "raw"
)

var ErrNotFitted = errors.New("scaler must be fitted before transform")

// Scaler learns per-column statistics in decimal arithmetic and emits
// float64 values for the estimators.
type Scaler struct {
	ScaleType   string
	IsFitted    bool
	FeatureMin  []decimal.Decimal
	FeatureMax  []decimal.Decimal
	FeatureMean []decimal.Decimal
	FeatureStd  []decimal.Decimal
}

func NewScaler(scaleType string) *Scaler {
	switch scaleType {
	case "standardized", "":
		scaleType = ScaleStandard
	case "normalized":
		scaleType = ScaleMinMax
	case "none":
		scaleType = ScaleRaw
	}
	return &Scaler{
		ScaleType: scaleType,
		IsFitted:  false,
	}
}

func (s *Scaler) Fit(X [][]decimal.Decimal) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler: %w", data.ErrEmptyDataset)
	}

	nFeatures := len(X[0])
	s.FeatureMin = make([]decimal.Decimal, nFeatures)
	s.FeatureMax = make([]decimal.Decimal, nFeatures)
	s.FeatureMean = make([]decimal.Decimal, nFeatures)
	s.FeatureStd = make([]decimal.Decimal, nFeatures)

	switch s.ScaleType {
	case ScaleMinMax:
		s.fitMinMax(X)
	case ScaleStandard:
		s.fitStandard(X)
	case ScaleRaw:
	default:
		return fmt.Errorf("unknown scale type: %s", s.ScaleType)
	}

	s.IsFitted = true
	return nil
}

func (s *Scaler) Transform(X [][]decimal.Decimal) ([][]float64, error) {
	if !s.IsFitted {
		return nil, ErrNotFitted
	}

	result := make([][]float64, len(X))
	for i := range X {
		if len(X[i]) != len(s.FeatureMean) {
			return nil, fmt.Errorf("sample %d has %d features, scaler was fitted on %d", i, len(X[i]), len(s.FeatureMean))
		}
		result[i] = make([]float64, len(X[i]))
		for j := range X[i] {
			var v decimal.Decimal
			switch s.ScaleType {
			case ScaleMinMax:
				v = s.transformMinMax(X[i][j], j)
			case ScaleStandard:
				v = s.transformStandard(X[i][j], j)
			default:
				v = X[i][j]
			}
			result[i][j] = v.InexactFloat64()
		}
	}

	return result, nil
}

func (s *Scaler) FitTransform(X [][]decimal.Decimal) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// ScaleTable fits on every row of the named columns of t and returns them
// scaled, keeping names and row order.
func (s *Scaler) ScaleTable(t *data.Table, columns []string) (*data.Frame, error) {
	X, err := t.Features(columns)
	if err != nil {
		return nil, err
	}
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.frame(X, columns)
}

// TransformTable scales the named columns of t with statistics learned by
// an earlier Fit.
func (s *Scaler) TransformTable(t *data.Table, columns []string) (*data.Frame, error) {
	X, err := t.Features(columns)
	if err != nil {
		return nil, err
	}
	return s.frame(X, columns)
}

func (s *Scaler) frame(X [][]decimal.Decimal, columns []string) (*data.Frame, error) {
	rows, err := s.Transform(X)
	if err != nil {
		return nil, err
	}
	return &data.Frame{Columns: append([]string(nil), columns...), Rows: rows}, nil
}

func (s *Scaler) fitMinMax(X [][]decimal.Decimal) {
	nFeatures := len(X[0])

	for j := 0; j < nFeatures; j++ {
		s.FeatureMin[j] = X[0][j]
		s.FeatureMax[j] = X[0][j]

		for i := 1; i < len(X); i++ {
			if X[i][j].LessThan(s.FeatureMin[j]) {
				s.FeatureMin[j] = X[i][j]
			}
			if X[i][j].GreaterThan(s.FeatureMax[j]) {
				s.FeatureMax[j] = X[i][j]
			}
		}
	}
}

// fitStandard uses the population variance (ddof=0).
func (s *Scaler) fitStandard(X [][]decimal.Decimal) {
	nFeatures := len(X[0])
	nSamples := decimal.NewFromInt(int64(len(X)))

	for j := 0; j < nFeatures; j++ {
		sum := decimal.Zero
		for i := 0; i < len(X); i++ {
			sum = sum.Add(X[i][j])
		}
		s.FeatureMean[j] = sum.Div(nSamples)
	}

	for j := 0; j < nFeatures; j++ {
		variance := decimal.Zero
		for i := 0; i < len(X); i++ {
			diff := X[i][j].Sub(s.FeatureMean[j])
			variance = variance.Add(diff.Mul(diff))
		}
		variance = variance.Div(nSamples)

		varFloat, _ := variance.Float64()
		stdFloat := math.Sqrt(varFloat)
		s.FeatureStd[j] = decimal.NewFromFloat(stdFloat)

		if s.FeatureStd[j].IsZero() {
			s.FeatureStd[j] = decimal.NewFromInt(1)
		}
	}
}

func (s *Scaler) transformMinMax(value decimal.Decimal, featureIndex int) decimal.Decimal {
	range_ := s.FeatureMax[featureIndex].Sub(s.FeatureMin[featureIndex])
	if range_.IsZero() {
		return decimal.Zero
	}
	return value.Sub(s.FeatureMin[featureIndex]).Div(range_)
}

func (s *Scaler) transformStandard(value decimal.Decimal, featureIndex int) decimal.Decimal {
	return value.Sub(s.FeatureMean[featureIndex]).Div(s.FeatureStd[featureIndex])
}
