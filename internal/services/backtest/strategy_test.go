package backtest

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/services/regime"
)

var simEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Two well separated market states: calm drift up, stressed drift down.
var simCenters = [2][5]float64{
	{0.004, 0.08, 0.003, -0.02, 12},
	{-0.006, 0.28, -0.005, -0.18, 33},
}

var simSpread = [5]float64{0.002, 0.01, 0.001, 0.01, 1.5}

func simBlocks(sizes ...int) []int {
	var ids []int
	for b, n := range sizes {
		for i := 0; i < n; i++ {
			ids = append(ids, b%2)
		}
	}
	return ids
}

func simSeries(seed int64, ids []int) []models.FeatureRow {
	rng := rand.New(rand.NewSource(seed))
	rows := make([]models.FeatureRow, len(ids))
	for i, id := range ids {
		c := simCenters[id]
		rows[i] = models.FeatureRow{
			Date:      simEpoch.AddDate(0, 0, i),
			LogReturn: c[0] + simSpread[0]*rng.NormFloat64(),
			Vol20:     c[1] + simSpread[1]*rng.NormFloat64(),
			MeanRet20: c[2] + simSpread[2]*rng.NormFloat64(),
			Drawdown:  c[3] + simSpread[3]*rng.NormFloat64(),
			VIXLevel:  c[4] + simSpread[4]*rng.NormFloat64(),
		}
	}
	return rows
}

func testDetector() *regime.Detector {
	cfg := regime.DefaultConfig()
	cfg.MinComponents = 2
	cfg.MaxComponents = 2
	cfg.Families = []regime.CovFamily{regime.FamilyEEE}
	cfg.Restarts = 2
	return regime.NewDetector(cfg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.7, cfg.TrainFrac)
	assert.Equal(t, []string{models.LabelBull}, cfg.LongLabels)
}

func TestSimulateTwoRegimes(t *testing.T) {
	// 150 rows: calm, stressed, calm again. The 0.7 split puts the train
	// boundary at row 105, so the test segment opens stressed and recovers.
	rows := simSeries(31, simBlocks(60, 60, 30))
	sim := NewSimulator(DefaultConfig(), testDetector())

	rep, err := sim.Simulate(context.Background(), "SPY", rows)
	require.NoError(t, err)
	require.NotNil(t, rep)

	assert.Equal(t, "SPY", rep.Symbol)
	assert.Equal(t, 0.7, rep.TrainFrac)
	assert.True(t, rep.SplitDate.Equal(rows[105].Date))
	assert.Equal(t, []string{models.LabelBull}, rep.LongLabels)
	assert.Equal(t, 2, rep.Model.Components)
	assert.Equal(t, 105, rep.Model.ValidRows)

	assert.True(t, rep.Train.From.Equal(rows[0].Date))
	assert.True(t, rep.Train.To.Equal(rows[104].Date))
	assert.True(t, rep.Test.From.Equal(rows[105].Date))
	assert.True(t, rep.Test.To.Equal(rows[149].Date))

	assert.Equal(t, 105, rep.Train.BuyHold.Days)
	assert.Equal(t, 45, rep.Test.BuyHold.Days)
	assert.Equal(t, float64(1), rep.Train.BuyHold.TimeInvested)
	assert.Equal(t, float64(1), rep.Test.BuyHold.TimeInvested)

	// Train: 60 calm days labeled Bull, so with the one-day lag the strategy
	// holds days 1 through 60. Test: Bull resumes at test row 15, so the
	// strategy holds days 16 through 44.
	assert.InDelta(t, 60.0/105.0, rep.Train.Strategy.TimeInvested, 1e-12)
	assert.InDelta(t, 29.0/45.0, rep.Test.Strategy.TimeInvested, 1e-12)
}

func TestSimulateTrainFracBounds(t *testing.T) {
	rows := simSeries(7, simBlocks(20, 20))
	for _, frac := range []float64{0, -0.5, 1, 1.5} {
		sim := NewSimulator(Config{TrainFrac: frac, LongLabels: []string{models.LabelBull}}, nil)
		_, err := sim.Simulate(context.Background(), "SPY", rows)
		assert.ErrorContains(t, err, "train fraction must be in (0, 1)")
	}
}

func TestSimulateNoLongLabels(t *testing.T) {
	sim := NewSimulator(Config{TrainFrac: 0.7}, nil)
	_, err := sim.Simulate(context.Background(), "SPY", simSeries(7, simBlocks(20, 20)))
	assert.ErrorContains(t, err, "at least one long label")
}

func TestSimulateTooLittleData(t *testing.T) {
	sim := NewSimulator(DefaultConfig(), nil)

	_, err := sim.Simulate(context.Background(), "SPY", nil)
	assert.ErrorContains(t, err, "leaves too little data")

	_, err = sim.Simulate(context.Background(), "SPY", make([]models.FeatureRow, 3))
	assert.ErrorContains(t, err, "leaves too little data")
}

func TestSimulateTrainFitFailure(t *testing.T) {
	rows := make([]models.FeatureRow, 30)
	for i := range rows {
		rows[i] = models.FeatureRow{Date: simEpoch.AddDate(0, 0, i), LogReturn: math.NaN(), Vol20: math.NaN(), MeanRet20: math.NaN(), Drawdown: math.NaN(), VIXLevel: math.NaN()}
	}
	sim := NewSimulator(DefaultConfig(), testDetector())
	_, err := sim.Simulate(context.Background(), "SPY", rows)
	assert.ErrorContains(t, err, "fit train segment")
}
