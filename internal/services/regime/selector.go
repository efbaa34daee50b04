package regime

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"RegimeLab/internal/domain/models"
)

// Selection is the validated modeling view over a feature series: the source
// rows plus the positions where every feature is finite. Warmup rows and rows
// with missing VIX stay in Rows but are excluded from fitting.
type Selection struct {
	Rows  []models.FeatureRow
	Valid []int
}

// SelectFeatures validates the series and records which rows are complete.
// Rows must be chronologically sorted with unique dates.
func SelectFeatures(rows []models.FeatureRow) (*Selection, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Stage: StageSelect, Reason: "empty feature series"}
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Date.After(rows[i-1].Date) {
			return nil, &ValidationError{
				Stage: StageSelect,
				Rows:  len(rows),
				Reason: fmt.Sprintf("dates not strictly increasing at index %d (%s)",
					i, rows[i].Date.Format("2006-01-02")),
			}
		}
	}
	sel := &Selection{Rows: rows}
	for i, r := range rows {
		if r.Complete() {
			sel.Valid = append(sel.Valid, i)
		}
	}
	if len(sel.Valid) == 0 {
		return nil, &ValidationError{Stage: StageSelect, Rows: len(rows), Reason: "no rows with all features present"}
	}
	return sel, nil
}

// Matrix returns the complete rows as a dense matrix in canonical feature order.
func (s *Selection) Matrix() *mat.Dense {
	X := mat.NewDense(len(s.Valid), models.FeatureDim, nil)
	for i, idx := range s.Valid {
		v := s.Rows[idx].Vector()
		X.SetRow(i, v[:])
	}
	return X
}
