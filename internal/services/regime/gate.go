package regime

import (
	"gonum.org/v1/gonum/mat"

	"RegimeLab/internal/domain/models"
)

// GateAssignments converts posteriors to hard cluster ids. An observation is
// assigned its arg-max component only when the maximum posterior reaches the
// threshold; below it the id is models.NoRegime.
func GateAssignments(post *mat.Dense, threshold float64) (ids []int, maxPost []float64) {
	n, g := post.Dims()
	ids = make([]int, n)
	maxPost = make([]float64, n)
	for i := 0; i < n; i++ {
		argmax, pmax := 0, post.At(i, 0)
		for k := 1; k < g; k++ {
			if p := post.At(i, k); p > pmax {
				argmax, pmax = k, p
			}
		}
		maxPost[i] = pmax
		if pmax >= threshold {
			ids[i] = argmax
		} else {
			ids[i] = models.NoRegime
		}
	}
	return ids, maxPost
}
