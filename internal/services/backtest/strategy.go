package backtest

import (
	"context"
	"fmt"
	"math"

	"RegimeLab/internal/domain/models"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/regime"
	"RegimeLab/internal/services/report"
	"RegimeLab/pkg/logger"
)

// Config controls the long/flat simulation.
type Config struct {
	// TrainFrac is the fraction of rows fitted on; the rest is scored
	// out of sample with the retained scaler and model.
	TrainFrac float64
	// LongLabels are the economic labels held long. Everything else is flat.
	LongLabels []string
}

// DefaultConfig returns the standard simulation configuration.
func DefaultConfig() Config {
	return Config{TrainFrac: 0.7, LongLabels: []string{models.LabelBull}}
}

// Simulator runs the toy long/flat regime strategy: fit on the train
// segment, classify the test segment, hold long on the configured labels
// with a one-day signal lag, compare against buy-and-hold.
type Simulator struct {
	cfg Config
	det *regime.Detector
	l   *logger.Logger
}

var _ domsvc.StrategySimulator = (*Simulator)(nil)

func NewSimulator(cfg Config, det *regime.Detector) *Simulator {
	return &Simulator{cfg: cfg, det: det}
}

// SetLogger injects an optional logger.
func (s *Simulator) SetLogger(l *logger.Logger) { s.l = l }

// Simulate splits the series, fits on train, scores test, and reports both
// segments. The classifier assigns test rows statically; nothing here
// forecasts future regimes.
func (s *Simulator) Simulate(ctx context.Context, symbol string, rows []models.FeatureRow) (*models.StrategyReport, error) {
	if s.cfg.TrainFrac <= 0 || s.cfg.TrainFrac >= 1 {
		return nil, fmt.Errorf("backtest: train fraction must be in (0, 1), got %g", s.cfg.TrainFrac)
	}
	if len(s.cfg.LongLabels) == 0 {
		return nil, fmt.Errorf("backtest: at least one long label is required")
	}
	split := int(float64(len(rows)) * s.cfg.TrainFrac)
	if split < 2 || len(rows)-split < 2 {
		return nil, fmt.Errorf("backtest: split %d/%d leaves too little data", split, len(rows)-split)
	}
	train, test := rows[:split], rows[split:]

	res, err := s.det.Run(ctx, train)
	if err != nil {
		return nil, fmt.Errorf("fit train segment: %w", err)
	}
	_, testLabels, err := s.det.Classify(res, test)
	if err != nil {
		return nil, fmt.Errorf("classify test segment: %w", err)
	}
	if s.l != nil {
		s.l.Info("strategy simulation fitted",
			logger.String("symbol", symbol),
			logger.Int("train_rows", len(train)),
			logger.Int("test_rows", len(test)),
			logger.Int("components", res.Fit.Model.G),
			logger.String("family", string(res.Fit.Model.Family)))
	}

	long := make(map[string]bool, len(s.cfg.LongLabels))
	for _, l := range s.cfg.LongLabels {
		long[l] = true
	}
	return &models.StrategyReport{
		Symbol:     symbol,
		TrainFrac:  s.cfg.TrainFrac,
		SplitDate:  test[0].Date,
		LongLabels: append([]string(nil), s.cfg.LongLabels...),
		Train:      segmentPerf(train, res.Labels, long),
		Test:       segmentPerf(test, testLabels, long),
		Model:      res.ModelInfo(),
	}, nil
}

// segmentPerf applies the one-day lag: the position held over day t comes
// from the label of day t-1. The first day of a segment is always flat.
func segmentPerf(rows []models.FeatureRow, labels []string, long map[string]bool) models.SegmentPerf {
	strat := make([]float64, len(rows))
	hold := make([]float64, len(rows))
	invested := 0
	for i, r := range rows {
		hold[i] = r.LogReturn
		if i == 0 || !long[labels[i-1]] {
			strat[i] = 0
			continue
		}
		invested++
		if math.IsNaN(r.LogReturn) {
			strat[i] = math.NaN()
		} else {
			strat[i] = r.LogReturn
		}
	}

	sp := report.Stats(strat)
	sp.TimeInvested = float64(invested) / float64(len(rows))
	bh := report.Stats(hold)
	bh.TimeInvested = 1

	return models.SegmentPerf{
		From:     rows[0].Date,
		To:       rows[len(rows)-1].Date,
		Strategy: sp,
		BuyHold:  bh,
	}
}
