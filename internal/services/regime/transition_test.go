package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func TestEstimateTransitions(t *testing.T) {
	labels := []string{"Bull", "Bull", "Bear", "Bull", "Neutral", "Neutral"}
	m, err := EstimateTransitions(labels)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bull", "Neutral", "Bear"}, m.Labels)

	// Bull is followed once each by Bull, Bear, and Neutral
	third := 1.0 / 3.0
	assert.InDelta(t, third, m.Probs[0][0], 1e-12)
	assert.InDelta(t, third, m.Probs[0][1], 1e-12)
	assert.InDelta(t, third, m.Probs[0][2], 1e-12)

	assert.Equal(t, []float64{0, 1, 0}, m.Row("Neutral"))
	assert.Equal(t, []float64{1, 0, 0}, m.Row("Bear"))
	assert.Nil(t, m.Row("Crash"))
}

func TestEstimateTransitionsRowsSumToOne(t *testing.T) {
	labels := []string{"Bear", "Neutral", "Bull", "Bear", "Bull", "Bull", "Neutral"}
	m, err := EstimateTransitions(labels)
	require.NoError(t, err)

	for i, row := range m.Probs {
		sum := 0.0
		for _, p := range row {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "row %d (%s)", i, m.Labels[i])
	}
}

func TestEstimateTransitionsGapBreaksAdjacency(t *testing.T) {
	labels := []string{"Bull", "", "Bear", "Bear"}
	m, err := EstimateTransitions(labels)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bull", "Bear"}, m.Labels)

	// Bull never precedes an observation, so its row is undefined
	bull := m.Row("Bull")
	require.Len(t, bull, 2)
	assert.True(t, math.IsNaN(bull[0]))
	assert.True(t, math.IsNaN(bull[1]))

	assert.Equal(t, []float64{0, 1}, m.Row("Bear"))
}

func TestEstimateTransitionsDegenerate(t *testing.T) {
	var derr *DegenerateTransitionError

	_, err := EstimateTransitions([]string{"", "Bull", ""})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 1, derr.Observations)

	_, err = EstimateTransitions(nil)
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, 0, derr.Observations)
}

func TestEstimateTransitionsExtraLabelsSortAfterCanonical(t *testing.T) {
	labels := []string{"Bull", "Crash", "Crash", "Bull"}
	m, err := EstimateTransitions(labels)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bull", "Crash"}, m.Labels)
	assert.Equal(t, []float64{0, 1}, m.Row("Bull"))
	assert.InDelta(t, 0.5, m.Row("Crash")[0], 1e-12)
	assert.InDelta(t, 0.5, m.Row("Crash")[1], 1e-12)
}
