package regime

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gonum.org/v1/gonum/mat"
)

func twoComponentModel() *Model {
	return &Model{
		G:       2,
		Dim:     2,
		Family:  FamilyEEE,
		Weights: []float64{0.5, 0.5},
		Means:   [][]float64{{-1, 0}, {1, 0}},
		Shape:   mat.NewSymDense(2, []float64{1, 0, 0, 1}),
	}
}

func TestNumParams(t *testing.T) {
	eee := &Model{G: 3, Dim: 5, Family: FamilyEEE}
	// 2 weights + 15 means + 15 covariance entries
	assert.Equal(t, 32, eee.NumParams())

	vee := &Model{G: 3, Dim: 5, Family: FamilyVEE}
	// EEE count plus G-1 free volume scales
	assert.Equal(t, 34, vee.NumParams())

	small := &Model{G: 2, Dim: 5, Family: FamilyEEE}
	assert.Equal(t, 26, small.NumParams())
}

func TestCovarianceByFamily(t *testing.T) {
	m := twoComponentModel()
	assert.Same(t, m.Shape, m.Covariance(0))
	assert.Same(t, m.Shape, m.Covariance(1))

	m.Family = FamilyVEE
	m.Volumes = []float64{2, 0.5}
	c0 := m.Covariance(0)
	assert.InDelta(t, 2.0, c0.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, c0.At(1, 1), 1e-12)
	assert.InDelta(t, 0.0, c0.At(0, 1), 1e-12)
	c1 := m.Covariance(1)
	assert.InDelta(t, 0.5, c1.At(0, 0), 1e-12)
}

func TestPosteriorsRowsSumToOne(t *testing.T) {
	m := twoComponentModel()
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0,
		-3, 0.5,
		2.5, -1,
	})
	post, err := m.Posteriors(X)
	require.NoError(t, err)

	n, g := post.Dims()
	require.Equal(t, 4, n)
	require.Equal(t, 2, g)
	for i := 0; i < n; i++ {
		sum := 0.0
		for k := 0; k < g; k++ {
			p := post.At(i, k)
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}

	// x = (0,0) is equidistant from both means
	assert.InDelta(t, 0.5, post.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, post.At(0, 1), 1e-12)

	// x = (1,0) sits on the second mean: odds ratio is exp(-2)
	want := 1 / (1 + math.Exp(-2))
	assert.InDelta(t, want, post.At(1, 1), 1e-12)
	assert.InDelta(t, 1-want, post.At(1, 0), 1e-12)
}

func TestPosteriorsDimensionMismatch(t *testing.T) {
	m := twoComponentModel()
	X := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	_, err := m.Posteriors(X)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestPosteriorsCollapsedWeight(t *testing.T) {
	m := twoComponentModel()
	m.Weights = []float64{1, 0}
	X := mat.NewDense(1, 2, []float64{0, 0})
	_, err := m.Posteriors(X)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collapsed to zero weight")
}

func TestNormalizeShape(t *testing.T) {
	S := mat.NewSymDense(2, []float64{4, 0, 0, 1})
	vol, shape, err := normalizeShape(S)
	require.NoError(t, err)

	// det(S) = 4, d = 2, so the volume is 2 and the shape has unit determinant
	assert.InDelta(t, 2.0, vol, 1e-12)
	assert.InDelta(t, 2.0, shape.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, shape.At(1, 1), 1e-12)

	det := shape.At(0, 0)*shape.At(1, 1) - shape.At(0, 1)*shape.At(1, 0)
	assert.InDelta(t, 1.0, det, 1e-12)
}

func TestNormalizeShapeNotPositiveDefinite(t *testing.T) {
	S := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	_, _, err := normalizeShape(S)
	require.Error(t, err)
}

func TestFitCandidateSeparatesClusters(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 80
	X := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		center := -3.0
		if i >= n/2 {
			center = 3.0
		}
		X.Set(i, 0, center+0.3*rng.NormFloat64())
		X.Set(i, 1, 0.3*rng.NormFloat64())
	}

	m, err := fitCandidate(X, 2, FamilyEEE, rng, 300, 1e-8)
	require.NoError(t, err)

	assert.Equal(t, 2, m.G)
	assert.GreaterOrEqual(t, m.Iterations, 1)
	assert.InDelta(t, 0.5, m.Weights[0], 0.1)
	assert.InDelta(t, 0.5, m.Weights[1], 0.1)

	// means land near the cluster centers, one per side
	lo, hi := m.Means[0][0], m.Means[1][0]
	if lo > hi {
		lo, hi = hi, lo
	}
	assert.InDelta(t, -3.0, lo, 0.4)
	assert.InDelta(t, 3.0, hi, 0.4)
}

func TestFitCandidateTooFewRows(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	X := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	_, err := fitCandidate(X, 3, FamilyEEE, rng, 100, 1e-6)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot support")
}
