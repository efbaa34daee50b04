package models

import (
	"math"
	"time"
)

// Bar is one daily OHLCV observation for a symbol. Dates are UTC midnight.
type Bar struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// FeatureRow is one dated observation of the modeling features.
// Missing values are NaN (rolling-window warmup, absent VIX dates).
type FeatureRow struct {
	Date      time.Time
	LogReturn float64
	Vol20     float64
	MeanRet20 float64
	Drawdown  float64
	VIXLevel  float64
}

// FeatureDim is the number of modeling features per row.
const FeatureDim = 5

// FeatureNames lists the modeling features in vector order.
var FeatureNames = [FeatureDim]string{"log_return", "vol_20", "mean_ret_20", "drawdown", "vix_level"}

// Vector returns the features in canonical order.
func (r FeatureRow) Vector() [FeatureDim]float64 {
	return [FeatureDim]float64{r.LogReturn, r.Vol20, r.MeanRet20, r.Drawdown, r.VIXLevel}
}

// Complete reports whether every feature value is finite.
func (r FeatureRow) Complete() bool {
	for _, v := range r.Vector() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
