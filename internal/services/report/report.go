package report

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
)

// tradingDaysPerYear is the annualization convention for daily data.
const tradingDaysPerYear = 252

// Reporter computes descriptive risk/return statistics for a labeled series.
type Reporter struct{}

var _ domsvc.Reporter = (*Reporter)(nil)

func NewReporter() *Reporter { return &Reporter{} }

// Report aggregates performance by economic label plus the whole sample.
// Points must align 1:1 with rows.
func (rp *Reporter) Report(ctx context.Context, symbol string, rows []models.FeatureRow, d *models.Detection) (*models.RegimeReport, error) {
	if len(d.Points) != len(rows) {
		return nil, fmt.Errorf("report: detection has %d points for %d rows", len(d.Points), len(rows))
	}
	total := len(rows)
	if total == 0 {
		return nil, fmt.Errorf("report: empty series")
	}

	all := make([]float64, total)
	byLabel := make(map[string][]float64)
	for i, r := range rows {
		all[i] = r.LogReturn
		if l := d.Points[i].Label; l != "" {
			byLabel[l] = append(byLabel[l], r.LogReturn)
		}
	}

	out := &models.RegimeReport{
		Symbol:  symbol,
		Overall: Stats(all),
		ByLabel: make(map[string]models.PerfStats, len(byLabel)),
	}
	out.Overall.TimeInvested = 1
	for label, rets := range byLabel {
		s := Stats(rets)
		s.TimeInvested = float64(len(rets)) / float64(total)
		out.ByLabel[label] = s
	}
	return out, nil
}

// Stats computes performance statistics over a daily log-return series.
// NaN returns are skipped for the moments and treated as flat days on the
// equity path. TimeInvested is left for the caller to fill.
func Stats(returns []float64) models.PerfStats {
	clean := make([]float64, 0, len(returns))
	for _, r := range returns {
		if !math.IsNaN(r) {
			clean = append(clean, r)
		}
	}
	s := models.PerfStats{Days: len(returns)}
	if len(clean) == 0 {
		return s
	}

	var total float64
	for _, r := range clean {
		total += r
	}
	s.TotalReturn = math.Expm1(total)
	mean := stat.Mean(clean, nil)
	s.AnnReturn = mean * tradingDaysPerYear
	if len(clean) > 1 {
		s.AnnVol = stat.StdDev(clean, nil) * math.Sqrt(tradingDaysPerYear)
	}
	if s.AnnVol > 0 {
		s.Sharpe = s.AnnReturn / s.AnnVol
	}
	s.MaxDrawdown = maxDrawdown(returns)
	return s
}

// maxDrawdown walks the cumulative log equity path and reports the deepest
// peak-to-trough drop as a simple return.
func maxDrawdown(returns []float64) float64 {
	var cum, peak, worst float64
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		cum += r
		if cum > peak {
			peak = cum
		}
		if drop := cum - peak; drop < worst {
			worst = drop
		}
	}
	return math.Expm1(worst)
}
