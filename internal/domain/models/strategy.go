package models

import "time"

// PerfStats summarizes the performance of a return series.
// Returns are log returns; annualization uses the 252 trading-day convention.
type PerfStats struct {
	Days         int     `json:"days"`
	TotalReturn  float64 `json:"total_return"`
	AnnReturn    float64 `json:"ann_return"`
	AnnVol       float64 `json:"ann_vol"`
	Sharpe       float64 `json:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	TimeInvested float64 `json:"time_invested"`
}

// SegmentPerf pairs the regime strategy with buy-and-hold over one segment.
type SegmentPerf struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Strategy PerfStats `json:"strategy"`
	BuyHold  PerfStats `json:"buy_hold"`
}

// StrategyReport is the output of the long/flat simulation: the detector is
// fitted on the train segment and classifies the test segment with the
// retained scaler and model.
type StrategyReport struct {
	Symbol     string      `json:"symbol"`
	TrainFrac  float64     `json:"train_frac"`
	SplitDate  time.Time   `json:"split_date"`
	LongLabels []string    `json:"long_labels"`
	Train      SegmentPerf `json:"train"`
	Test       SegmentPerf `json:"test"`
	Model      ModelInfo   `json:"model"`
}

// RegimeReport holds descriptive risk/return statistics per economic label
// plus the whole sample.
type RegimeReport struct {
	Symbol  string               `json:"symbol"`
	Overall PerfStats            `json:"overall"`
	ByLabel map[string]PerfStats `json:"by_label"`
}
