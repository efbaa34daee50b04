package regime

import (
	"math"
	"sort"

	"RegimeLab/internal/domain/models"
)

// canonicalLabels fixes the matrix axis order.
var canonicalLabels = []string{models.LabelBull, models.LabelNeutral, models.LabelBear}

// EstimateTransitions counts consecutive label pairs in the sequence and
// normalizes each row by its outgoing total. Unassigned observations break
// adjacency: pairs across a gap are not counted. A label that never precedes
// another observation keeps an all-NaN row rather than a zero division.
func EstimateTransitions(labels []string) (models.TransitionMatrix, error) {
	present := make(map[string]bool)
	n := 0
	for _, l := range labels {
		if l != "" {
			present[l] = true
			n++
		}
	}
	if n < 2 {
		return models.TransitionMatrix{}, &DegenerateTransitionError{Observations: n}
	}

	axis := make([]string, 0, len(present))
	for _, l := range canonicalLabels {
		if present[l] {
			axis = append(axis, l)
			delete(present, l)
		}
	}
	if len(present) > 0 {
		rest := make([]string, 0, len(present))
		for l := range present {
			rest = append(rest, l)
		}
		sort.Strings(rest)
		axis = append(axis, rest...)
	}
	idx := make(map[string]int, len(axis))
	for i, l := range axis {
		idx[l] = i
	}

	counts := make([][]int, len(axis))
	for i := range counts {
		counts[i] = make([]int, len(axis))
	}
	prev := ""
	for _, l := range labels {
		if l == "" {
			prev = ""
			continue
		}
		if prev != "" {
			counts[idx[prev]][idx[l]]++
		}
		prev = l
	}

	probs := make([][]float64, len(axis))
	for i := range probs {
		probs[i] = make([]float64, len(axis))
		var rowSum float64
		for _, c := range counts[i] {
			rowSum += float64(c)
		}
		if rowSum == 0 {
			for j := range probs[i] {
				probs[i][j] = math.NaN()
			}
			continue
		}
		for j := range probs[i] {
			probs[i][j] = float64(counts[i][j]) / rowSum
		}
	}
	return models.TransitionMatrix{Labels: axis, Probs: probs}, nil
}
