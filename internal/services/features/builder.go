package features

import (
    "fmt"
    "math"
    "time"

    "RegimeLab/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}) aligned 1:1 with the bars.
// The first element is NaN, as is any element with a non-positive close.
func LogReturns(bars []models.Bar) []float64 {
    out := make([]float64, len(bars))
    for i := range bars {
        if i == 0 {
            out[i] = math.NaN()
            continue
        }
        prev := bars[i-1].Close
        cur := bars[i].Close
        if prev <= 0 || cur <= 0 {
            out[i] = math.NaN()
            continue
        }
        out[i] = math.Log(cur / prev)
    }
    return out
}

// RollingMean computes the trailing-window mean at each position. Positions
// without a full window, or whose window contains NaN, are NaN.
func RollingMean(xs []float64, window int) []float64 {
    out := make([]float64, len(xs))
    for i := range out {
        out[i] = windowStat(xs, i, window, false)
    }
    return out
}

// RollingStd computes the trailing-window sample standard deviation at each
// position, with the same NaN rules as RollingMean.
func RollingStd(xs []float64, window int) []float64 {
    out := make([]float64, len(xs))
    for i := range out {
        out[i] = windowStat(xs, i, window, true)
    }
    return out
}

func windowStat(xs []float64, i, window int, std bool) float64 {
    if window <= 1 || i < window-1 {
        return math.NaN()
    }
    sum := 0.0
    sum2 := 0.0
    for j := i - window + 1; j <= i; j++ {
        v := xs[j]
        if math.IsNaN(v) {
            return math.NaN()
        }
        sum += v
        sum2 += v * v
    }
    n := float64(window)
    mean := sum / n
    if !std {
        return mean
    }
    variance := (sum2 - n*mean*mean) / (n - 1)
    if variance < 0 {
        variance = 0
    }
    return math.Sqrt(variance)
}

// Drawdowns computes C_t / max(C_0..C_t) - 1, which is 0 at a running peak
// and negative below it.
func Drawdowns(bars []models.Bar) []float64 {
    out := make([]float64, len(bars))
    peak := math.Inf(-1)
    for i, b := range bars {
        if b.Close > peak {
            peak = b.Close
        }
        if b.Close <= 0 || peak <= 0 {
            out[i] = math.NaN()
            continue
        }
        out[i] = b.Close/peak - 1
    }
    return out
}

// Build joins daily equity bars with a volatility index by date and computes
// the modeling features. Output rows align 1:1 with the equity bars; warmup
// positions and dates without a VIX close hold NaN.
func Build(equity, vix []models.Bar, window int) ([]models.FeatureRow, error) {
    if len(equity) == 0 {
        return nil, fmt.Errorf("features: no equity bars")
    }
    if window < 2 {
        return nil, fmt.Errorf("features: window must be >= 2, got %d", window)
    }
    if err := checkSorted(equity, "equity"); err != nil {
        return nil, err
    }
    if err := checkSorted(vix, "vix"); err != nil {
        return nil, err
    }

    vixByDate := make(map[time.Time]float64, len(vix))
    for _, b := range vix {
        vixByDate[dayOf(b.Date)] = b.Close
    }

    rets := LogReturns(equity)
    vol := RollingStd(rets, window)
    meanRet := RollingMean(rets, window)
    dd := Drawdowns(equity)

    rows := make([]models.FeatureRow, len(equity))
    for i, b := range equity {
        level, ok := vixByDate[dayOf(b.Date)]
        if !ok {
            level = math.NaN()
        }
        rows[i] = models.FeatureRow{
            Date:      dayOf(b.Date),
            LogReturn: rets[i],
            Vol20:     vol[i],
            MeanRet20: meanRet[i],
            Drawdown:  dd[i],
            VIXLevel:  level,
        }
    }
    return rows, nil
}

func checkSorted(bars []models.Bar, name string) error {
    for i := 1; i < len(bars); i++ {
        if !bars[i].Date.After(bars[i-1].Date) {
            return fmt.Errorf("features: %s bars not strictly increasing at index %d (%s)",
                name, i, bars[i].Date.Format("2006-01-02"))
        }
    }
    return nil
}

func dayOf(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
