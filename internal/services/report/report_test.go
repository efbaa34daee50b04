package report

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
)

func TestStatsConstantReturns(t *testing.T) {
	const r = 0.0009765625 // 2^-10, sums without rounding
	returns := make([]float64, 252)
	for i := range returns {
		returns[i] = r
	}
	s := Stats(returns)

	assert.Equal(t, 252, s.Days)
	assert.InDelta(t, math.Expm1(252*r), s.TotalReturn, 1e-12)
	assert.InDelta(t, 252*r, s.AnnReturn, 1e-12)
	assert.Zero(t, s.AnnVol)
	assert.Zero(t, s.Sharpe, "no volatility, no ratio")
	assert.Zero(t, s.MaxDrawdown)
}

func TestStatsSkipsNaN(t *testing.T) {
	s := Stats([]float64{0.01, math.NaN(), -0.02})

	assert.Equal(t, 3, s.Days)
	assert.InDelta(t, math.Expm1(-0.01), s.TotalReturn, 1e-12)
	assert.InDelta(t, -0.005*252, s.AnnReturn, 1e-12)
	assert.InDelta(t, math.Sqrt(0.00045)*math.Sqrt(252), s.AnnVol, 1e-12)
	assert.InDelta(t, s.AnnReturn/s.AnnVol, s.Sharpe, 1e-12)
	// the cumulative path peaks at 0.01 and ends at -0.01
	assert.InDelta(t, math.Expm1(-0.02), s.MaxDrawdown, 1e-12)
}

func TestStatsEmptyAndAllNaN(t *testing.T) {
	s := Stats(nil)
	assert.Equal(t, 0, s.Days)
	assert.Zero(t, s.TotalReturn)

	s = Stats([]float64{math.NaN(), math.NaN()})
	assert.Equal(t, 2, s.Days)
	assert.Zero(t, s.AnnReturn)
	assert.Zero(t, s.AnnVol)
}

func TestReport(t *testing.T) {
	day := func(i int) time.Time {
		return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	rows := []models.FeatureRow{
		{Date: day(0), LogReturn: 0.01},
		{Date: day(1), LogReturn: 0.02},
		{Date: day(2), LogReturn: -0.03},
		{Date: day(3), LogReturn: 0.005},
	}
	det := &models.Detection{
		Symbol: "SPY",
		Points: []models.RegimePoint{
			{Date: day(0), RegimeID: 0, Label: models.LabelBull},
			{Date: day(1), RegimeID: 0, Label: models.LabelBull},
			{Date: day(2), RegimeID: models.NoRegime, Label: ""},
			{Date: day(3), RegimeID: 1, Label: models.LabelBear},
		},
	}

	rep, err := NewReporter().Report(context.Background(), "SPY", rows, det)
	require.NoError(t, err)

	assert.Equal(t, "SPY", rep.Symbol)
	assert.Equal(t, 4, rep.Overall.Days)
	assert.InDelta(t, 1.0, rep.Overall.TimeInvested, 1e-12)

	require.Contains(t, rep.ByLabel, models.LabelBull)
	require.Contains(t, rep.ByLabel, models.LabelBear)
	assert.NotContains(t, rep.ByLabel, "", "unassigned days belong to no label")

	bull := rep.ByLabel[models.LabelBull]
	assert.Equal(t, 2, bull.Days)
	assert.InDelta(t, 0.5, bull.TimeInvested, 1e-12)
	assert.InDelta(t, math.Expm1(0.03), bull.TotalReturn, 1e-12)

	bear := rep.ByLabel[models.LabelBear]
	assert.Equal(t, 1, bear.Days)
	assert.InDelta(t, 0.25, bear.TimeInvested, 1e-12)
}

func TestReportLengthMismatch(t *testing.T) {
	rows := []models.FeatureRow{{LogReturn: 0.01}}
	det := &models.Detection{Points: []models.RegimePoint{{}, {}}}

	_, err := NewReporter().Report(context.Background(), "SPY", rows, det)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 points for 1 rows")
}

func TestReportEmptySeries(t *testing.T) {
	_, err := NewReporter().Report(context.Background(), "SPY", nil, &models.Detection{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty series")
}

func TestMaxDrawdownPath(t *testing.T) {
	// rises, falls past the old peak, partially recovers
	returns := []float64{0.10, -0.05, -0.10, 0.03}
	got := maxDrawdown(returns)
	assert.InDelta(t, math.Expm1(-0.15), got, 1e-12)
}
