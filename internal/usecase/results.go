package usecase

import (
	"sync"
	"time"

	"RegimeLab/internal/domain/models"
)

// Results holds the latest run's output for the API. Detections are treated
// as immutable once set, so readers share the stored pointers.
type Results struct {
	mu       sync.RWMutex
	det      *models.Detection
	strategy *models.StrategyReport
	report   *models.RegimeReport
}

func NewResults() *Results {
	return &Results{}
}

func (r *Results) SetDetection(d *models.Detection) {
	r.mu.Lock()
	r.det = d
	r.mu.Unlock()
}

func (r *Results) SetStrategy(s *models.StrategyReport) {
	r.mu.Lock()
	r.strategy = s
	r.mu.Unlock()
}

func (r *Results) SetReport(rep *models.RegimeReport) {
	r.mu.Lock()
	r.report = rep
	r.mu.Unlock()
}

// Detection returns the latest detection or nil before the first run.
func (r *Results) Detection() *models.Detection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.det
}

func (r *Results) Strategy() *models.StrategyReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategy
}

func (r *Results) Report() *models.RegimeReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.report
}

// Points returns daily assignments filtered to [from, to]. Zero bounds are
// open. order is "asc" or "desc"; limit 0 means all.
func (r *Results) Points(from, to time.Time, limit int, order string) []models.RegimePoint {
	d := r.Detection()
	if d == nil {
		return nil
	}

	out := make([]models.RegimePoint, 0, len(d.Points))
	for _, p := range d.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}

	if order == "desc" {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *Results) Summaries() []models.RegimeSummary {
	d := r.Detection()
	if d == nil {
		return nil
	}
	return d.Summaries
}

func (r *Results) Transitions() *models.TransitionMatrix {
	d := r.Detection()
	if d == nil {
		return nil
	}
	return &d.Transitions
}
