package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegimeLab/internal/domain/models"
	pkgcache "RegimeLab/pkg/cache"
)

func TestModelCacheStoreMiss(t *testing.T) {
	store := NewModelCacheStore(pkgcache.NewMemoryCache(), time.Minute)

	d, err := store.Get(context.Background(), "deadbeef")
	require.NoError(t, err, "a miss is not an error")
	assert.Nil(t, d)
}

func TestModelCacheStoreRoundTrip(t *testing.T) {
	store := NewModelCacheStore(pkgcache.NewMemoryCache(), time.Minute)
	fitted := time.Date(2024, 5, 6, 12, 30, 0, 0, time.UTC)

	in := &models.Detection{
		Symbol: "SPY",
		Points: []models.RegimePoint{
			{Date: fitted.AddDate(0, 0, -2), RegimeID: 0, Label: models.LabelBull},
			{Date: fitted.AddDate(0, 0, -1), RegimeID: models.NoRegime},
		},
		Summaries: []models.RegimeSummary{
			{RegimeID: 0, Days: 1, MeanReturn: 0.004, MeanVol: 0.1, MeanDrawdown: -0.01, MeanVIX: math.NaN(), Label: models.LabelBull},
		},
		Transitions: models.TransitionMatrix{
			Labels: []string{models.LabelBull},
			Probs:  [][]float64{{math.NaN()}},
		},
		Model:       models.ModelInfo{Components: 2, Family: "EEE", BIC: -123.4, LogLik: 80.1, Iterations: 17, ValidRows: 1},
		Scaler:      models.ScalerInfo{Mean: []float64{1, 2}, Std: []float64{3, 4}},
		Fingerprint: "deadbeef",
		FittedAt:    fitted,
	}
	require.NoError(t, store.Set(context.Background(), in.Fingerprint, in))

	out, err := store.Get(context.Background(), in.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, in.Symbol, out.Symbol)
	assert.Equal(t, in.Fingerprint, out.Fingerprint)
	assert.Equal(t, in.Model, out.Model)
	assert.Equal(t, in.Scaler, out.Scaler)
	assert.True(t, out.FittedAt.Equal(in.FittedAt))

	require.Len(t, out.Points, 2)
	assert.True(t, out.Points[0].Date.Equal(in.Points[0].Date))
	assert.Equal(t, models.NoRegime, out.Points[1].RegimeID)

	// NaN survives the JSON transport as null and comes back as NaN.
	require.Len(t, out.Summaries, 1)
	assert.True(t, math.IsNaN(out.Summaries[0].MeanVIX))
	assert.Equal(t, 0.004, out.Summaries[0].MeanReturn)
	require.Len(t, out.Transitions.Probs, 1)
	assert.True(t, math.IsNaN(out.Transitions.Probs[0][0]))
}

func TestModelCacheStoreKeysAreDistinct(t *testing.T) {
	store := NewModelCacheStore(pkgcache.NewMemoryCache(), time.Minute)

	a := &models.Detection{Symbol: "SPY", Fingerprint: "aaaa"}
	b := &models.Detection{Symbol: "QQQ", Fingerprint: "bbbb"}
	require.NoError(t, store.Set(context.Background(), a.Fingerprint, a))
	require.NoError(t, store.Set(context.Background(), b.Fingerprint, b))

	got, err := store.Get(context.Background(), "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "SPY", got.Symbol)
}
