package regime

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
)

const (
	// minComponentMass is the responsibility mass below which a component
	// counts as collapsed and the candidate is abandoned.
	minComponentMass = 1e-6
	// veeInnerSweeps is the number of fixed-point sweeps alternating shape
	// and volumes inside one VEE M-step.
	veeInnerSweeps = 4
	// covRidge keeps the initial pooled covariance invertible.
	covRidge = 1e-6
)

// Model is a fitted Gaussian mixture over standardized features.
type Model struct {
	G      int
	Dim    int
	Family CovFamily

	Weights []float64
	Means   [][]float64
	// Shape is the shared covariance structure. For EEE it is the common
	// covariance itself; for VEE it is the unit-determinant shape matrix.
	Shape *mat.SymDense
	// Volumes holds the per-component scale for VEE; nil for EEE.
	Volumes []float64

	LogLik     float64
	BIC        float64
	Iterations int
}

// Covariance returns component k's covariance matrix.
func (m *Model) Covariance(k int) *mat.SymDense {
	if m.Family == FamilyEEE {
		return m.Shape
	}
	out := mat.NewSymDense(m.Dim, nil)
	for i := 0; i < m.Dim; i++ {
		for j := i; j < m.Dim; j++ {
			out.SetSym(i, j, m.Volumes[k]*m.Shape.At(i, j))
		}
	}
	return out
}

// NumParams counts the free parameters penalized by BIC: mixing weights,
// component means, the covariance structure, and VEE volume scales.
func (m *Model) NumParams() int {
	p := (m.G - 1) + m.G*m.Dim + m.Dim*(m.Dim+1)/2
	if m.Family == FamilyVEE {
		p += m.G - 1
	}
	return p
}

// Posteriors returns the n x G membership probabilities of X under the model.
// Each row is non-negative and sums to 1.
func (m *Model) Posteriors(X *mat.Dense) (*mat.Dense, error) {
	resp, _, err := m.responsibilities(X)
	return resp, err
}

// responsibilities computes posteriors and the total log-likelihood using the
// log-sum-exp trick, so small densities never underflow to hard zeros.
func (m *Model) responsibilities(X *mat.Dense) (*mat.Dense, float64, error) {
	n, d := X.Dims()
	if d != m.Dim {
		return nil, 0, fmt.Errorf("dimension mismatch: model has %d features, data has %d", m.Dim, d)
	}
	dists := make([]*distmv.Normal, m.G)
	for k := 0; k < m.G; k++ {
		nd, ok := distmv.NewNormal(m.Means[k], m.Covariance(k), nil)
		if !ok {
			return nil, 0, fmt.Errorf("component %d covariance not positive definite", k)
		}
		dists[k] = nd
	}
	logw := make([]float64, m.G)
	for k, w := range m.Weights {
		if w <= 0 {
			return nil, 0, fmt.Errorf("component %d collapsed to zero weight", k)
		}
		logw[k] = math.Log(w)
	}
	resp := mat.NewDense(n, m.G, nil)
	row := make([]float64, d)
	lw := make([]float64, m.G)
	var ll float64
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		for k := 0; k < m.G; k++ {
			lw[k] = logw[k] + dists[k].LogProb(row)
		}
		tot := floats.LogSumExp(lw)
		if math.IsNaN(tot) || math.IsInf(tot, 0) {
			return nil, 0, fmt.Errorf("log-likelihood diverged at row %d", i)
		}
		ll += tot
		for k := 0; k < m.G; k++ {
			resp.Set(i, k, math.Exp(lw[k]-tot))
		}
	}
	return resp, ll, nil
}

// fitCandidate runs seeded EM for one (components, family) grid cell.
// Candidates that collapse, lose positive-definiteness, or miss the
// convergence tolerance within the iteration cap are reported as errors and
// excluded from model selection.
func fitCandidate(X *mat.Dense, g int, family CovFamily, rng *rand.Rand, maxIter int, tol float64) (*Model, error) {
	n, _ := X.Dims()
	if n < g+1 {
		return nil, fmt.Errorf("%d rows cannot support %d components", n, g)
	}
	m, err := initCandidate(X, g, family, rng)
	if err != nil {
		return nil, err
	}
	prev := math.Inf(-1)
	for it := 0; it < maxIter; it++ {
		resp, ll, err := m.responsibilities(X)
		if err != nil {
			return nil, err
		}
		if it > 0 && math.Abs(ll-prev) <= tol*(1+math.Abs(ll)) {
			m.LogLik = ll
			m.Iterations = it
			return m, nil
		}
		prev = ll
		if err := m.mstep(X, resp); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("EM did not converge within %d iterations", maxIter)
}

// initCandidate seeds the EM run: means drawn from distinct observations,
// uniform weights, pooled sample covariance as the starting structure.
func initCandidate(X *mat.Dense, g int, family CovFamily, rng *rand.Rand) (*Model, error) {
	n, d := X.Dims()
	m := &Model{G: g, Dim: d, Family: family}
	m.Weights = make([]float64, g)
	m.Means = make([][]float64, g)
	perm := rng.Perm(n)
	for k := 0; k < g; k++ {
		m.Weights[k] = 1 / float64(g)
		mu := make([]float64, d)
		mat.Row(mu, perm[k], X)
		m.Means[k] = mu
	}
	pooled := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(pooled, X, nil)
	for i := 0; i < d; i++ {
		pooled.SetSym(i, i, pooled.At(i, i)+covRidge)
	}
	switch family {
	case FamilyEEE:
		m.Shape = pooled
	case FamilyVEE:
		vol, shape, err := normalizeShape(pooled)
		if err != nil {
			return nil, err
		}
		m.Shape = shape
		m.Volumes = make([]float64, g)
		for k := range m.Volumes {
			m.Volumes[k] = vol
		}
	default:
		return nil, fmt.Errorf("unknown covariance family %q", family)
	}
	return m, nil
}

func (m *Model) mstep(X, resp *mat.Dense) error {
	n, d := X.Dims()
	nk := make([]float64, m.G)
	for i := 0; i < n; i++ {
		for k := 0; k < m.G; k++ {
			nk[k] += resp.At(i, k)
		}
	}
	for k, v := range nk {
		if v < minComponentMass {
			return fmt.Errorf("component %d collapsed (mass %.3g)", k, v)
		}
	}
	for k := 0; k < m.G; k++ {
		m.Weights[k] = nk[k] / float64(n)
	}
	row := make([]float64, d)
	for k := 0; k < m.G; k++ {
		mu := m.Means[k]
		for j := range mu {
			mu[j] = 0
		}
		for i := 0; i < n; i++ {
			r := resp.At(i, k)
			if r == 0 {
				continue
			}
			mat.Row(row, i, X)
			for j := 0; j < d; j++ {
				mu[j] += r * row[j]
			}
		}
		for j := range mu {
			mu[j] /= nk[k]
		}
	}

	// weighted scatter per component
	W := make([]*mat.SymDense, m.G)
	for k := range W {
		W[k] = mat.NewSymDense(d, nil)
	}
	diff := make([]float64, d)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		for k := 0; k < m.G; k++ {
			r := resp.At(i, k)
			if r == 0 {
				continue
			}
			for j := 0; j < d; j++ {
				diff[j] = row[j] - m.Means[k][j]
			}
			for a := 0; a < d; a++ {
				for b := a; b < d; b++ {
					W[k].SetSym(a, b, W[k].At(a, b)+r*diff[a]*diff[b])
				}
			}
		}
	}

	switch m.Family {
	case FamilyEEE:
		S := mat.NewSymDense(d, nil)
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				var sum float64
				for k := 0; k < m.G; k++ {
					sum += W[k].At(a, b)
				}
				S.SetSym(a, b, sum/float64(n))
			}
		}
		m.Shape = S
		return nil
	case FamilyVEE:
		return m.mstepVEE(W, nk, d)
	default:
		return fmt.Errorf("unknown covariance family %q", m.Family)
	}
}

// mstepVEE alternates the shared shape and the per-component volumes while
// holding det(shape) = 1. A few fixed-point sweeps suffice.
func (m *Model) mstepVEE(W []*mat.SymDense, nk []float64, d int) error {
	for sweep := 0; sweep < veeInnerSweeps; sweep++ {
		raw := mat.NewSymDense(d, nil)
		for a := 0; a < d; a++ {
			for b := a; b < d; b++ {
				var sum float64
				for k := 0; k < m.G; k++ {
					sum += W[k].At(a, b) / m.Volumes[k]
				}
				raw.SetSym(a, b, sum)
			}
		}
		_, shape, err := normalizeShape(raw)
		if err != nil {
			return err
		}
		m.Shape = shape
		var ch mat.Cholesky
		if !ch.Factorize(shape) {
			return fmt.Errorf("shape matrix lost positive definiteness")
		}
		for k := 0; k < m.G; k++ {
			var sol mat.Dense
			if err := ch.SolveTo(&sol, W[k]); err != nil {
				return fmt.Errorf("solve shape system for component %d: %w", k, err)
			}
			vol := mat.Trace(&sol) / (float64(d) * nk[k])
			if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
				return fmt.Errorf("component %d volume degenerated", k)
			}
			m.Volumes[k] = vol
		}
	}
	return nil
}

// normalizeShape splits a positive definite matrix into its volume
// det(S)^(1/d) and a unit-determinant shape matrix.
func normalizeShape(S *mat.SymDense) (float64, *mat.SymDense, error) {
	d := S.SymmetricDim()
	var ch mat.Cholesky
	if !ch.Factorize(S) {
		return 0, nil, fmt.Errorf("shape matrix not positive definite")
	}
	vol := math.Exp(ch.LogDet() / float64(d))
	if vol <= 0 || math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, nil, fmt.Errorf("shape determinant degenerated")
	}
	out := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			out.SetSym(i, j, S.At(i, j)/vol)
		}
	}
	return vol, out, nil
}
