package regime

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/pkg/logger"
)

// Pipeline stage names used in errors, logs, and metrics.
const (
	StageSelect       = "select"
	StageStandardize  = "standardize"
	StageFit          = "fit"
	StageGate         = "gate"
	StageSmooth       = "smooth"
	StageCharacterize = "characterize"
	StageLabel        = "label"
	StageTransition   = "transition"
)

// Result carries every intermediate artifact of one detection run. Stages
// never mutate an earlier artifact; each field is written exactly once.
type Result struct {
	Selection *Selection
	Scaler    *Scaler
	Fit       *FitResult
	RawIDs    []int     // gated ids over complete rows
	MaxPost   []float64 // winning posterior per complete row
	FinalIDs  []int     // smoothed ids over the full series
	Summaries []models.RegimeSummary
	Labels    []string // economic labels over the full series
	Matrix    models.TransitionMatrix
}

// Detector runs the regime detection pipeline: select, standardize, fit,
// gate, smooth, characterize, label, estimate transitions. It holds no
// fitted state between runs.
type Detector struct {
	cfg     Config
	l       *logger.Logger
	metrics repository.Metrics
}

var _ domsvc.RegimeDetector = (*Detector)(nil)

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// SetLogger injects an optional logger for stage diagnostics.
func (d *Detector) SetLogger(l *logger.Logger) { d.l = l }

// SetMetrics injects an optional recorder for stage durations.
func (d *Detector) SetMetrics(m repository.Metrics) { d.metrics = m }

// Config returns a copy of the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// Run executes the full pipeline and returns all intermediate artifacts.
func (d *Detector) Run(ctx context.Context, rows []models.FeatureRow) (*Result, error) {
	if err := d.cfg.Validate(); err != nil {
		return nil, &ValidationError{Stage: "config", Rows: len(rows), Reason: err.Error()}
	}
	res := &Result{}

	start := time.Now()
	sel, err := SelectFeatures(rows)
	if err != nil {
		return nil, err
	}
	res.Selection = sel
	d.observe(StageSelect, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	X := sel.Matrix()
	scaler, err := FitScaler(X)
	if err != nil {
		return nil, err
	}
	res.Scaler = scaler
	Z := scaler.Transform(X)
	d.observe(StageStandardize, start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	fitter := NewFitter(d.cfg)
	fitter.SetLogger(d.l)
	fit, err := fitter.Fit(Z)
	if err != nil {
		return nil, err
	}
	res.Fit = fit
	d.observe(StageFit, start)
	if d.l != nil {
		d.l.Info("mixture model selected",
			logger.Int("components", fit.Model.G),
			logger.String("family", string(fit.Model.Family)),
			logger.Any("bic", fit.Model.BIC),
			logger.Int("valid_rows", len(sel.Valid)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	res.RawIDs, res.MaxPost = GateAssignments(fit.Posteriors, d.cfg.ConfidenceThreshold)
	d.observe(StageGate, start)

	start = time.Now()
	res.FinalIDs = Smooth(res.RawIDs, sel.Valid, len(rows), d.cfg.MinRegimeLen)
	d.observe(StageSmooth, start)
	if allUnassigned(res.FinalIDs) {
		return nil, &ValidationError{
			Stage:  StageSmooth,
			Rows:   len(rows),
			Reason: fmt.Sprintf("no regime run reached the minimum duration of %d observations", d.cfg.MinRegimeLen),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start = time.Now()
	sums, err := Characterize(rows, res.FinalIDs, NullSkip)
	if err != nil {
		return nil, err
	}
	d.observe(StageCharacterize, start)

	start = time.Now()
	res.Summaries = LabelSummaries(sums)
	res.Labels = LabelSequence(res.FinalIDs, res.Summaries)
	d.observe(StageLabel, start)

	start = time.Now()
	matrix, err := EstimateTransitions(res.Labels)
	if err != nil {
		return nil, err
	}
	res.Matrix = matrix
	d.observe(StageTransition, start)

	return res, nil
}

// Detect runs the pipeline and maps the result to the transport artifact.
func (d *Detector) Detect(ctx context.Context, symbol string, rows []models.FeatureRow) (*models.Detection, error) {
	res, err := d.Run(ctx, rows)
	if err != nil {
		return nil, err
	}
	return d.detection(symbol, rows, res), nil
}

// Classify scores new rows against a previously fitted result: the retained
// scaler projects them into model space, then gating and smoothing run under
// the same configuration and ids map to the fitted labels. Nothing is
// refitted here.
func (d *Detector) Classify(res *Result, rows []models.FeatureRow) ([]int, []string, error) {
	sel, err := SelectFeatures(rows)
	if err != nil {
		return nil, nil, err
	}
	Z := res.Scaler.Transform(sel.Matrix())
	post, err := res.Fit.Model.Posteriors(Z)
	if err != nil {
		return nil, nil, fmt.Errorf("score new rows: %w", err)
	}
	raw, _ := GateAssignments(post, d.cfg.ConfidenceThreshold)
	final := Smooth(raw, sel.Valid, len(rows), d.cfg.MinRegimeLen)
	labels := LabelSequence(final, res.Summaries)
	return final, labels, nil
}

func (d *Detector) detection(symbol string, rows []models.FeatureRow, res *Result) *models.Detection {
	points := make([]models.RegimePoint, len(rows))
	for i, r := range rows {
		points[i] = models.RegimePoint{Date: r.Date, RegimeID: res.FinalIDs[i], Label: res.Labels[i]}
	}
	return &models.Detection{
		Symbol:      symbol,
		Points:      points,
		Summaries:   res.Summaries,
		Transitions: res.Matrix,
		Model:       res.ModelInfo(),
		Scaler:      res.Scaler.Info(),
		Fingerprint: Fingerprint(rows, d.cfg),
		FittedAt:    time.Now().UTC(),
	}
}

// ModelInfo summarizes the selected model for transport artifacts.
func (r *Result) ModelInfo() models.ModelInfo {
	return models.ModelInfo{
		Components: r.Fit.Model.G,
		Family:     string(r.Fit.Model.Family),
		BIC:        r.Fit.Model.BIC,
		LogLik:     r.Fit.Model.LogLik,
		Iterations: r.Fit.Model.Iterations,
		ValidRows:  len(r.Selection.Valid),
	}
}

func (d *Detector) observe(stage string, start time.Time) {
	elapsed := time.Since(start)
	if d.metrics != nil {
		d.metrics.RecordStageDuration(stage, elapsed.Seconds())
	}
	if d.l != nil {
		d.l.Debug("pipeline stage done", logger.String("stage", stage), logger.Duration("elapsed", elapsed))
	}
}

func allUnassigned(ids []int) bool {
	for _, id := range ids {
		if id != models.NoRegime {
			return false
		}
	}
	return true
}

// Fingerprint hashes the feature data together with the detection
// configuration. Identical fingerprints yield identical detections, which is
// what the optional model cache keys on.
func Fingerprint(rows []models.FeatureRow, cfg Config) string {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, r := range rows {
		binary.LittleEndian.PutUint64(buf, uint64(r.Date.Unix()))
		h.Write(buf)
		for _, v := range r.Vector() {
			binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
			h.Write(buf)
		}
	}
	fmt.Fprintf(h, "|t=%g|d=%d|g=%d-%d|fam=%v|seed=%d|it=%d|tol=%g|r=%d",
		cfg.ConfidenceThreshold, cfg.MinRegimeLen, cfg.MinComponents, cfg.MaxComponents,
		cfg.Families, cfg.Seed, cfg.MaxIterations, cfg.Tolerance, cfg.Restarts)
	return hex.EncodeToString(h.Sum(nil))
}
