package regime

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
)

// Scaler holds per-column standardization parameters. It is retained after
// fitting so new observations can be projected into the fitted model's space.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes column means and sample standard deviations over X.
// A column with zero or non-finite dispersion cannot be standardized.
func FitScaler(X *mat.Dense) (*Scaler, error) {
	n, d := X.Dims()
	if n < 2 {
		return nil, &ValidationError{Stage: StageStandardize, Rows: n, Reason: "need at least 2 complete rows"}
	}
	s := &Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, X)
		s.Mean[j] = stat.Mean(col, nil)
		s.Std[j] = stat.StdDev(col, nil)
		if s.Std[j] == 0 || math.IsNaN(s.Std[j]) || math.IsInf(s.Std[j], 0) {
			return nil, &ValidationError{
				Stage:  StageStandardize,
				Rows:   n,
				Reason: fmt.Sprintf("feature %s has no variance", models.FeatureNames[j]),
			}
		}
	}
	return s, nil
}

// Transform returns a new matrix with each column centered and scaled.
func (s *Scaler) Transform(X *mat.Dense) *mat.Dense {
	n, d := X.Dims()
	Z := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			Z.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Std[j])
		}
	}
	return Z
}

// Info exports the parameters for the detection artifact.
func (s *Scaler) Info() models.ScalerInfo {
	mean := make([]float64, len(s.Mean))
	std := make([]float64, len(s.Std))
	copy(mean, s.Mean)
	copy(std, s.Std)
	return models.ScalerInfo{Mean: mean, Std: std}
}
