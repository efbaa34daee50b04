package regime

import (
	"math"
	"sort"

	"RegimeLab/internal/domain/models"
)

// LabelSummaries applies the economic labeling rule. The input is not
// modified; the result is sorted by regime id regardless of input order, so
// labeling is order independent and idempotent.
//
// Bull needs a positive mean return on below-median volatility, Bear a
// negative mean return on above-median volatility. Everything else, including
// regimes with undefined statistics, is Neutral.
func LabelSummaries(sums []models.RegimeSummary) []models.RegimeSummary {
	out := make([]models.RegimeSummary, len(sums))
	copy(out, sums)
	sort.Slice(out, func(i, j int) bool { return out[i].RegimeID < out[j].RegimeID })

	vols := make([]float64, 0, len(out))
	for _, s := range out {
		if !math.IsNaN(s.MeanVol) {
			vols = append(vols, s.MeanVol)
		}
	}
	med := median(vols)
	for i := range out {
		out[i].Label = labelOf(out[i].MeanReturn, out[i].MeanVol, med)
	}
	return out
}

func labelOf(meanRet, meanVol, medianVol float64) string {
	switch {
	case meanRet > 0 && meanVol < medianVol:
		return models.LabelBull
	case meanRet < 0 && meanVol > medianVol:
		return models.LabelBear
	default:
		return models.LabelNeutral
	}
}

// median returns NaN for an empty slice. Even counts average the middle two.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := make([]float64, len(xs))
	copy(s, xs)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// LabelSequence maps final ids to their economic labels. Unassigned rows get
// an empty label.
func LabelSequence(ids []int, sums []models.RegimeSummary) []string {
	byID := make(map[int]string, len(sums))
	for _, s := range sums {
		byID[s.RegimeID] = s.Label
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == models.NoRegime {
			continue
		}
		out[i] = byID[id]
	}
	return out
}
