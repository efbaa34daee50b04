package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Economic regime labels.
const (
	LabelBull    = "Bull"
	LabelNeutral = "Neutral"
	LabelBear    = "Bear"
)

// NoRegime marks an observation without a regime assignment.
const NoRegime = -1

// RegimeSummary describes one regime cluster after characterization and labeling.
// Means are computed over the rows assigned to the regime; a mean can be NaN
// when the regime holds no usable values for that feature.
type RegimeSummary struct {
	RegimeID     int     `json:"regime_id"`
	Days         int     `json:"days"`
	MeanReturn   float64 `json:"mean_return"`
	MeanVol      float64 `json:"mean_vol"`
	MeanDrawdown float64 `json:"mean_drawdown"`
	MeanVIX      float64 `json:"mean_vix"`
	Label        string  `json:"label"`
}

// MarshalJSON writes NaN means as null so summaries survive JSON transport.
func (s RegimeSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RegimeID     int             `json:"regime_id"`
		Days         int             `json:"days"`
		MeanReturn   json.RawMessage `json:"mean_return"`
		MeanVol      json.RawMessage `json:"mean_vol"`
		MeanDrawdown json.RawMessage `json:"mean_drawdown"`
		MeanVIX      json.RawMessage `json:"mean_vix"`
		Label        string          `json:"label"`
	}{
		RegimeID:     s.RegimeID,
		Days:         s.Days,
		MeanReturn:   floatJSON(s.MeanReturn),
		MeanVol:      floatJSON(s.MeanVol),
		MeanDrawdown: floatJSON(s.MeanDrawdown),
		MeanVIX:      floatJSON(s.MeanVIX),
		Label:        s.Label,
	})
}

// UnmarshalJSON restores null means back to NaN.
func (s *RegimeSummary) UnmarshalJSON(data []byte) error {
	var raw struct {
		RegimeID     int      `json:"regime_id"`
		Days         int      `json:"days"`
		MeanReturn   *float64 `json:"mean_return"`
		MeanVol      *float64 `json:"mean_vol"`
		MeanDrawdown *float64 `json:"mean_drawdown"`
		MeanVIX      *float64 `json:"mean_vix"`
		Label        string   `json:"label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.RegimeID = raw.RegimeID
	s.Days = raw.Days
	s.MeanReturn = floatOrNaN(raw.MeanReturn)
	s.MeanVol = floatOrNaN(raw.MeanVol)
	s.MeanDrawdown = floatOrNaN(raw.MeanDrawdown)
	s.MeanVIX = floatOrNaN(raw.MeanVIX)
	s.Label = raw.Label
	return nil
}

// TransitionMatrix is the row-stochastic empirical transition estimate between
// economic labels. Probs[i][j] is P(next = Labels[j] | current = Labels[i]).
// A label that never precedes another observation has an all-NaN row.
type TransitionMatrix struct {
	Labels []string    `json:"labels"`
	Probs  [][]float64 `json:"probs"`
}

// Row returns the outgoing probability row for a label, or nil when the label
// is not part of the matrix.
func (m TransitionMatrix) Row(label string) []float64 {
	for i, l := range m.Labels {
		if l == label {
			return m.Probs[i]
		}
	}
	return nil
}

// MarshalJSON writes NaN entries as null, which standard JSON cannot carry.
func (m TransitionMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]json.RawMessage, len(m.Probs))
	for i, row := range m.Probs {
		rows[i] = make([]json.RawMessage, len(row))
		for j, p := range row {
			rows[i][j] = floatJSON(p)
		}
	}
	return json.Marshal(struct {
		Labels []string            `json:"labels"`
		Probs  [][]json.RawMessage `json:"probs"`
	}{Labels: m.Labels, Probs: rows})
}

// UnmarshalJSON restores null entries back to NaN.
func (m *TransitionMatrix) UnmarshalJSON(data []byte) error {
	var raw struct {
		Labels []string     `json:"labels"`
		Probs  [][]*float64 `json:"probs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Labels = raw.Labels
	m.Probs = make([][]float64, len(raw.Probs))
	for i, row := range raw.Probs {
		m.Probs[i] = make([]float64, len(row))
		for j, p := range row {
			m.Probs[i][j] = floatOrNaN(p)
		}
	}
	return nil
}

// ModelInfo records the mixture model selected by the grid search.
type ModelInfo struct {
	Components int     `json:"components"`
	Family     string  `json:"family"`
	BIC        float64 `json:"bic"`
	LogLik     float64 `json:"loglik"`
	Iterations int     `json:"iterations"`
	ValidRows  int     `json:"valid_rows"`
}

// ScalerInfo retains the standardization parameters so new observations can be
// scaled into the fitted model's space.
type ScalerInfo struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// RegimePoint is one dated observation of the final regime sequence.
// RegimeID is NoRegime and Label empty where no assignment survived smoothing.
type RegimePoint struct {
	Date     time.Time `json:"date"`
	RegimeID int       `json:"regime_id"`
	Label    string    `json:"label"`
}

// Detection is the complete output artifact of one detection run.
type Detection struct {
	Symbol      string           `json:"symbol"`
	Points      []RegimePoint    `json:"points"`
	Summaries   []RegimeSummary  `json:"summaries"`
	Transitions TransitionMatrix `json:"transitions"`
	Model       ModelInfo        `json:"model"`
	Scaler      ScalerInfo       `json:"scaler"`
	Fingerprint string           `json:"fingerprint"`
	FittedAt    time.Time        `json:"fitted_at"`
}

// LabelChanges returns the points where the economic label differs from the
// previous point, skipping unassigned observations. Used for event publishing.
func (d *Detection) LabelChanges() []LabelChange {
	var out []LabelChange
	prev := ""
	for _, p := range d.Points {
		if p.Label == "" {
			continue
		}
		if prev != "" && p.Label != prev {
			out = append(out, LabelChange{Date: p.Date, From: prev, To: p.Label})
		}
		prev = p.Label
	}
	return out
}

// LabelChange is a day on which the economic label switched.
type LabelChange struct {
	Date time.Time `json:"date"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

func floatJSON(f float64) json.RawMessage {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.FormatFloat(f, 'g', -1, 64))
}

func floatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

// FormatRegimeID renders an id for CSV and logs, with unassigned rows empty.
func FormatRegimeID(id int) string {
	if id == NoRegime {
		return ""
	}
	return fmt.Sprintf("%d", id)
}
