package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func TestCharacterize(t *testing.T) {
	rows := []models.FeatureRow{
		{Date: testDay(0), LogReturn: 0.01, Vol20: 0.1, Drawdown: -0.02, VIXLevel: 12},
		{Date: testDay(1), LogReturn: 0.03, Vol20: 0.2, Drawdown: -0.04, VIXLevel: math.NaN()},
		{Date: testDay(2), LogReturn: -0.05, Vol20: 0.5, Drawdown: -0.30, VIXLevel: 35},
		{Date: testDay(3), LogReturn: 0.00, Vol20: 0.3, Drawdown: -0.10, VIXLevel: 20},
	}
	ids := []int{0, 0, 1, models.NoRegime}

	sums, err := Characterize(rows, ids, NullSkip)
	require.NoError(t, err)
	require.Len(t, sums, 2)

	assert.Equal(t, 0, sums[0].RegimeID)
	assert.Equal(t, 2, sums[0].Days)
	assert.InDelta(t, 0.02, sums[0].MeanReturn, 1e-12)
	assert.InDelta(t, 0.15, sums[0].MeanVol, 1e-12)
	assert.InDelta(t, -0.03, sums[0].MeanDrawdown, 1e-12)
	// the NaN VIX observation is skipped, not averaged
	assert.InDelta(t, 12.0, sums[0].MeanVIX, 1e-12)

	assert.Equal(t, 1, sums[1].RegimeID)
	assert.Equal(t, 1, sums[1].Days)
	assert.InDelta(t, 35.0, sums[1].MeanVIX, 1e-12)

	// labels belong to a later stage
	assert.Empty(t, sums[0].Label)
}

func TestCharacterizeNullPropagate(t *testing.T) {
	rows := []models.FeatureRow{
		{Date: testDay(0), LogReturn: 0.01, Vol20: 0.1, Drawdown: -0.02, VIXLevel: 12},
		{Date: testDay(1), LogReturn: 0.03, Vol20: 0.2, Drawdown: -0.04, VIXLevel: math.NaN()},
	}
	sums, err := Characterize(rows, []int{0, 0}, NullPropagate)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(sums[0].MeanVIX))
	// fields without missing values still aggregate
	assert.InDelta(t, 0.02, sums[0].MeanReturn, 1e-12)
}

func TestCharacterizeAllValuesMissing(t *testing.T) {
	rows := []models.FeatureRow{
		{Date: testDay(0), LogReturn: 0.01, Vol20: 0.1, VIXLevel: math.NaN()},
	}
	sums, err := Characterize(rows, []int{0}, NullSkip)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sums[0].MeanVIX))
}

func TestCharacterizeLengthMismatch(t *testing.T) {
	rows := []models.FeatureRow{{Date: testDay(0)}}
	_, err := Characterize(rows, []int{0, 1}, NullSkip)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StageCharacterize, verr.Stage)
}

func TestCharacterizeNothingAssigned(t *testing.T) {
	rows := []models.FeatureRow{{Date: testDay(0)}, {Date: testDay(1)}}
	_, err := Characterize(rows, []int{models.NoRegime, models.NoRegime}, NullSkip)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assigned observations")
}

func TestCharacterizeSortsByRegimeID(t *testing.T) {
	rows := []models.FeatureRow{
		{Date: testDay(0), LogReturn: 1},
		{Date: testDay(1), LogReturn: 2},
		{Date: testDay(2), LogReturn: 3},
	}
	sums, err := Characterize(rows, []int{2, 0, 1}, NullSkip)
	require.NoError(t, err)
	require.Len(t, sums, 3)
	assert.Equal(t, 0, sums[0].RegimeID)
	assert.Equal(t, 1, sums[1].RegimeID)
	assert.Equal(t, 2, sums[2].RegimeID)
	assert.Equal(t, 2.0, sums[0].MeanReturn)
}
