package models

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	KernelRBF    = "rbf"
	KernelLinear = "linear"

	// GammaScale selects 1 / (n_features * Var(X)).
	GammaScale = 0.0

	smoTau = 1e-12
)

type SVCConfig struct {
	C      float64
	Kernel string
	// Gamma for the RBF kernel; GammaScale derives it from the data.
	Gamma   float64
	Tol     float64
	MaxIter int
	// Seed is recorded for reproducibility; the solver is deterministic.
	Seed int64
}

func DefaultSVCConfig() SVCConfig {
	return SVCConfig{
		C:      1.0,
		Kernel: KernelRBF,
		Gamma:  GammaScale,
		Tol:    1e-3,
		Seed:   1,
	}
}

// SVC is a binary soft-margin support vector classifier trained with SMO
// using second-order working set selection.
type SVC struct {
	BaseModel
	Config         SVCConfig
	SupportVectors [][]float64
	// DualCoef holds alpha_i * y_i for each support vector.
	DualCoef []float64
	Rho      float64
	Gamma    float64
	Iter     int
	fitted   bool
}

func NewSVC(cfg SVCConfig) *SVC {
	if cfg.C <= 0 {
		cfg.C = 1.0
	}
	if cfg.Kernel == "" {
		cfg.Kernel = KernelRBF
	}
	if cfg.Tol <= 0 {
		cfg.Tol = 1e-3
	}
	return &SVC{
		Config: cfg,
		BaseModel: BaseModel{
			Name: "SVC",
			Params: map[string]any{
				"C":            cfg.C,
				"kernel":       cfg.Kernel,
				"gamma":        cfg.Gamma,
				"random_state": cfg.Seed,
			},
		},
	}
}

func (s *SVC) kernel(a, b []float64) float64 {
	switch s.Config.Kernel {
	case KernelLinear:
		return floats.Dot(a, b)
	default:
		d := 0.0
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Exp(-s.Gamma * d)
	}
}

// scaleGamma computes 1 / (n_features * variance of all values).
func scaleGamma(X [][]float64) float64 {
	all := make([]float64, 0, len(X)*len(X[0]))
	for _, row := range X {
		all = append(all, row...)
	}
	_, variance := stat.PopMeanVariance(all, nil)
	if variance == 0 {
		return 1.0
	}
	return 1.0 / (float64(len(X[0])) * variance)
}

func (s *SVC) Fit(X [][]float64, y []int) error {
	if err := checkTrainingSet(X, y); err != nil {
		return err
	}
	if s.Config.Kernel != KernelRBF && s.Config.Kernel != KernelLinear {
		return fmt.Errorf("unknown kernel %q", s.Config.Kernel)
	}
	s.Classes = ExtractClasses(y)
	if len(s.Classes) != 2 {
		return fmt.Errorf("%w: got %d", ErrNotBinary, len(s.Classes))
	}

	s.Gamma = s.Config.Gamma
	if s.Gamma <= 0 {
		s.Gamma = scaleGamma(X)
	}

	n := len(X)
	signs := make([]float64, n)
	for i, label := range y {
		signs[i] = -1
		if label == s.Classes[1] {
			signs[i] = 1
		}
	}

	K := make([][]float64, n)
	for i := range K {
		K[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := s.kernel(X[i], X[j])
			K[i][j] = v
			K[j][i] = v
		}
	}

	alpha, grad, iter := s.solve(K, signs)
	s.Iter = iter
	s.Rho = computeRho(alpha, grad, signs, s.Config.C)

	s.SupportVectors = nil
	s.DualCoef = nil
	for i := 0; i < n; i++ {
		if alpha[i] > 0 {
			sv := make([]float64, len(X[i]))
			copy(sv, X[i])
			s.SupportVectors = append(s.SupportVectors, sv)
			s.DualCoef = append(s.DualCoef, alpha[i]*signs[i])
		}
	}
	s.fitted = true
	return nil
}

// solve minimises 0.5 a'Qa - e'a subject to 0 <= a <= C and y'a = 0,
// with Q_ij = y_i y_j K_ij.
func (s *SVC) solve(K [][]float64, signs []float64) (alpha, grad []float64, iter int) {
	n := len(signs)
	C := s.Config.C
	alpha = make([]float64, n)
	grad = make([]float64, n)
	for i := range grad {
		grad[i] = -1
	}

	maxIter := s.Config.MaxIter
	if maxIter <= 0 {
		maxIter = 10000000
		if 100*n > maxIter {
			maxIter = 100 * n
		}
	}

	isUpper := func(t int) bool { return alpha[t] >= C }
	isLower := func(t int) bool { return alpha[t] <= 0 }

	for iter = 0; iter < maxIter; iter++ {
		i, j := -1, -1
		gmax := math.Inf(-1)
		for t := 0; t < n; t++ {
			if signs[t] > 0 {
				if !isUpper(t) && -grad[t] >= gmax {
					gmax = -grad[t]
					i = t
				}
			} else if !isLower(t) && grad[t] >= gmax {
				gmax = grad[t]
				i = t
			}
		}
		if i < 0 {
			break
		}

		gmax2 := math.Inf(-1)
		objMin := math.Inf(1)
		for t := 0; t < n; t++ {
			if signs[t] > 0 {
				if isLower(t) {
					continue
				}
				gradDiff := gmax + grad[t]
				if grad[t] >= gmax2 {
					gmax2 = grad[t]
				}
				if gradDiff > 0 {
					quad := K[i][i] + K[t][t] - 2*signs[t]*K[i][t]
					if quad <= 0 {
						quad = smoTau
					}
					if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
						j = t
						objMin = obj
					}
				}
			} else {
				if isUpper(t) {
					continue
				}
				gradDiff := gmax - grad[t]
				if -grad[t] >= gmax2 {
					gmax2 = -grad[t]
				}
				if gradDiff > 0 {
					quad := K[i][i] + K[t][t] + 2*signs[t]*K[i][t]
					if quad <= 0 {
						quad = smoTau
					}
					if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
						j = t
						objMin = obj
					}
				}
			}
		}
		if gmax+gmax2 < s.Config.Tol || j < 0 {
			break
		}

		oldAi, oldAj := alpha[i], alpha[j]
		Qij := signs[i] * signs[j] * K[i][j]
		if signs[i] != signs[j] {
			quad := K[i][i] + K[j][j] + 2*Qij
			if quad <= 0 {
				quad = smoTau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := K[i][i] + K[j][j] - 2*Qij
			if quad <= 0 {
				quad = smoTau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dAi := alpha[i] - oldAi
		dAj := alpha[j] - oldAj
		for t := 0; t < n; t++ {
			grad[t] += signs[t]*signs[i]*K[t][i]*dAi + signs[t]*signs[j]*K[t][j]*dAj
		}
	}
	return alpha, grad, iter
}

func computeRho(alpha, grad, signs []float64, C float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree := 0.0
	nFree := 0
	for i := range alpha {
		yG := signs[i] * grad[i]
		switch {
		case alpha[i] >= C:
			if signs[i] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case alpha[i] <= 0:
			if signs[i] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// DecisionFunction returns sum_i coef_i K(sv_i, x) - rho; positive values
// favour the second class.
func (s *SVC) DecisionFunction(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if !s.fitted {
		return out
	}
	for i, sample := range X {
		v := -s.Rho
		for k, sv := range s.SupportVectors {
			v += s.DualCoef[k] * s.kernel(sv, sample)
		}
		out[i] = v
	}
	return out
}

func (s *SVC) Predict(X [][]float64) []int {
	predictions := make([]int, len(X))
	if !s.fitted {
		return predictions
	}
	for i, v := range s.DecisionFunction(X) {
		if v > 0 {
			predictions[i] = s.Classes[1]
		} else {
			predictions[i] = s.Classes[0]
		}
	}
	return predictions
}

func (s *SVC) Reset() {
	s.SupportVectors = nil
	s.DualCoef = nil
	s.Classes = nil
	s.fitted = false
}
