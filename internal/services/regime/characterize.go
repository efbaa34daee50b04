package regime

import (
	"fmt"
	"math"
	"sort"

	"RegimeLab/internal/domain/models"
)

// NullPolicy controls how aggregation treats missing feature values.
type NullPolicy int

const (
	// NullSkip averages over present values only.
	NullSkip NullPolicy = iota
	// NullPropagate makes any missing value poison the aggregate.
	NullPropagate
)

// Characterize computes per-regime feature means over the final assignment.
// ids must be aligned 1:1 with rows. Summaries come back sorted by regime id
// with empty labels; labeling is a separate stage.
func Characterize(rows []models.FeatureRow, ids []int, policy NullPolicy) ([]models.RegimeSummary, error) {
	if len(rows) != len(ids) {
		return nil, &ValidationError{
			Stage:  StageCharacterize,
			Rows:   len(rows),
			Reason: fmt.Sprintf("assignment length %d does not match row count %d", len(ids), len(rows)),
		}
	}
	groups := make(map[int][]int)
	for i, id := range ids {
		if id == models.NoRegime {
			continue
		}
		groups[id] = append(groups[id], i)
	}
	if len(groups) == 0 {
		return nil, &ValidationError{Stage: StageCharacterize, Rows: len(rows), Reason: "no assigned observations to characterize"}
	}
	idList := make([]int, 0, len(groups))
	for id := range groups {
		idList = append(idList, id)
	}
	sort.Ints(idList)

	out := make([]models.RegimeSummary, 0, len(idList))
	for _, id := range idList {
		idxs := groups[id]
		out = append(out, models.RegimeSummary{
			RegimeID:     id,
			Days:         len(idxs),
			MeanReturn:   meanField(rows, idxs, func(r models.FeatureRow) float64 { return r.LogReturn }, policy),
			MeanVol:      meanField(rows, idxs, func(r models.FeatureRow) float64 { return r.Vol20 }, policy),
			MeanDrawdown: meanField(rows, idxs, func(r models.FeatureRow) float64 { return r.Drawdown }, policy),
			MeanVIX:      meanField(rows, idxs, func(r models.FeatureRow) float64 { return r.VIXLevel }, policy),
		})
	}
	return out, nil
}

func meanField(rows []models.FeatureRow, idxs []int, get func(models.FeatureRow) float64, policy NullPolicy) float64 {
	var sum float64
	var n int
	for _, i := range idxs {
		v := get(rows[i])
		if math.IsNaN(v) {
			if policy == NullPropagate {
				return math.NaN()
			}
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
