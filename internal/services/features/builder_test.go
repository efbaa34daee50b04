package features

import (
    "math"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "RegimeLab/internal/domain/models"
)

func day(i int) time.Time {
    return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func bar(i int, close float64) models.Bar {
    return models.Bar{Date: day(i), Symbol: "SPY", Close: close}
}

func TestLogReturns(t *testing.T) {
    bars := []models.Bar{bar(0, 100), bar(1, 110), bar(2, 99)}
    rets := LogReturns(bars)

    require.Len(t, rets, 3)
    assert.True(t, math.IsNaN(rets[0]))
    assert.InDelta(t, math.Log(1.1), rets[1], 1e-12)
    assert.InDelta(t, math.Log(99.0/110.0), rets[2], 1e-12)
}

func TestLogReturnsNonPositiveClose(t *testing.T) {
    bars := []models.Bar{bar(0, 100), bar(1, 0), bar(2, 50)}
    rets := LogReturns(bars)

    assert.True(t, math.IsNaN(rets[1]))
    // the return after the bad close is also undefined
    assert.True(t, math.IsNaN(rets[2]))
}

func TestRollingMean(t *testing.T) {
    xs := []float64{1, 2, 3, 4}
    got := RollingMean(xs, 2)

    assert.True(t, math.IsNaN(got[0]))
    assert.InDelta(t, 1.5, got[1], 1e-12)
    assert.InDelta(t, 2.5, got[2], 1e-12)
    assert.InDelta(t, 3.5, got[3], 1e-12)
}

func TestRollingMeanNaNPoisonsWindow(t *testing.T) {
    xs := []float64{1, math.NaN(), 3, 4}
    got := RollingMean(xs, 2)

    assert.True(t, math.IsNaN(got[1]))
    assert.True(t, math.IsNaN(got[2]))
    assert.InDelta(t, 3.5, got[3], 1e-12)
}

func TestRollingStd(t *testing.T) {
    xs := []float64{2, 4, 4, 4, 5, 5, 7, 9}
    got := RollingStd(xs, 8)

    for i := 0; i < 7; i++ {
        assert.True(t, math.IsNaN(got[i]), "position %d is warmup", i)
    }
    // sample standard deviation of the classic example sequence
    assert.InDelta(t, math.Sqrt(32.0/7.0), got[7], 1e-12)
}

func TestRollingStdDegenerateWindow(t *testing.T) {
    got := RollingStd([]float64{1, 2, 3}, 1)
    for _, v := range got {
        assert.True(t, math.IsNaN(v))
    }
}

func TestDrawdowns(t *testing.T) {
    bars := []models.Bar{bar(0, 100), bar(1, 110), bar(2, 99), bar(3, 120)}
    dd := Drawdowns(bars)

    assert.InDelta(t, 0, dd[0], 1e-12)
    assert.InDelta(t, 0, dd[1], 1e-12)
    assert.InDelta(t, 99.0/110.0-1, dd[2], 1e-12)
    assert.InDelta(t, 0, dd[3], 1e-12)
}

func TestBuild(t *testing.T) {
    equity := []models.Bar{
        bar(0, 100), bar(1, 101), bar(2, 103), bar(3, 102), bar(4, 104),
    }
    // the VIX series misses day 3
    vix := []models.Bar{
        {Date: day(0), Symbol: "^VIX", Close: 14},
        {Date: day(1), Symbol: "^VIX", Close: 15},
        {Date: day(2), Symbol: "^VIX", Close: 13},
        {Date: day(4), Symbol: "^VIX", Close: 16},
    }

    rows, err := Build(equity, vix, 2)
    require.NoError(t, err)
    require.Len(t, rows, 5)

    assert.Equal(t, day(0), rows[0].Date)
    assert.True(t, math.IsNaN(rows[0].LogReturn))
    assert.True(t, math.IsNaN(rows[1].Vol20), "window includes the NaN first return")

    assert.InDelta(t, math.Log(103.0/101.0), rows[2].LogReturn, 1e-12)
    assert.False(t, math.IsNaN(rows[2].Vol20))
    assert.False(t, math.IsNaN(rows[2].MeanRet20))

    assert.Equal(t, 15.0, rows[1].VIXLevel)
    assert.True(t, math.IsNaN(rows[3].VIXLevel), "missing VIX date stays NaN")
    assert.Equal(t, 16.0, rows[4].VIXLevel)

    assert.False(t, rows[3].Complete())
    assert.True(t, rows[4].Complete())
}

func TestBuildJoinsByCalendarDay(t *testing.T) {
    equity := []models.Bar{
        {Date: day(0).Add(21 * time.Hour), Symbol: "SPY", Close: 100},
        {Date: day(1).Add(21 * time.Hour), Symbol: "SPY", Close: 101},
    }
    vix := []models.Bar{
        {Date: day(1), Symbol: "^VIX", Close: 17},
    }
    rows, err := Build(equity, vix, 2)
    require.NoError(t, err)

    assert.Equal(t, day(1), rows[1].Date)
    assert.Equal(t, 17.0, rows[1].VIXLevel)
}

func TestBuildErrors(t *testing.T) {
    equity := []models.Bar{bar(0, 100), bar(1, 101)}

    _, err := Build(nil, nil, 2)
    assert.ErrorContains(t, err, "no equity bars")

    _, err = Build(equity, nil, 1)
    assert.ErrorContains(t, err, "window must be >= 2")

    unsorted := []models.Bar{bar(1, 100), bar(0, 101)}
    _, err = Build(unsorted, nil, 2)
    assert.ErrorContains(t, err, "equity bars not strictly increasing")

    _, err = Build(equity, unsorted, 2)
    assert.ErrorContains(t, err, "vix bars not strictly increasing")
}
