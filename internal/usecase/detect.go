package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	domrepo "RegimeLab/internal/domain/repository"
	domsvc "RegimeLab/internal/domain/service"
	"RegimeLab/internal/services/features"
	"RegimeLab/internal/services/regime"
	applogger "RegimeLab/pkg/logger"
)

// DetectParams bounds the data a detection run operates on.
type DetectParams struct {
	Symbol    string
	VIXSymbol string
	From      time.Time
	To        time.Time
	Window    int
}

// DetectUsecase runs the full detection flow: load bars, build features,
// fit or reuse a model, then hand the detection to the artifact router.
type DetectUsecase struct {
	bars     domrepo.BarSource
	store    domrepo.BarStore
	detector *regime.Detector
	sim      domsvc.StrategySimulator
	reporter domsvc.Reporter
	cache    domrepo.ModelCache
	router   *ArtifactRouter
	results  *Results
	metrics  domrepo.Metrics
	l        *applogger.Logger
	params   DetectParams
}

// NewDetectUsecase creates the detection use case.
func NewDetectUsecase(
	bars domrepo.BarSource,
	detector *regime.Detector,
	router *ArtifactRouter,
	results *Results,
	metrics domrepo.Metrics,
	params DetectParams,
) *DetectUsecase {
	return &DetectUsecase{
		bars:     bars,
		detector: detector,
		router:   router,
		results:  results,
		metrics:  metrics,
		params:   params,
	}
}

// SetLogger injects a structured logger.
func (uc *DetectUsecase) SetLogger(l *applogger.Logger) { uc.l = l }

// SetBarStore enables persisting remotely fetched bars.
func (uc *DetectUsecase) SetBarStore(s domrepo.BarStore) { uc.store = s }

// SetModelCache enables fingerprint-keyed detection reuse.
func (uc *DetectUsecase) SetModelCache(c domrepo.ModelCache) { uc.cache = c }

// SetSimulator enables the strategy simulation step after detection.
func (uc *DetectUsecase) SetSimulator(s domsvc.StrategySimulator) { uc.sim = s }

// SetReporter enables the per-label performance report after detection.
func (uc *DetectUsecase) SetReporter(r domsvc.Reporter) { uc.reporter = r }

// RunOnce executes a full detection run. With force=false an identical input
// series (same bars, same settings) is served from the model cache.
func (uc *DetectUsecase) RunOnce(ctx context.Context, force bool) (*models.Detection, error) {
	start := time.Now()

	rows, err := uc.loadRows(ctx)
	if err != nil {
		uc.metrics.RecordRun("failed")
		uc.metrics.RecordError("load")
		return nil, fmt.Errorf("load features: %w", err)
	}

	fp := regime.Fingerprint(rows, uc.detector.Config())
	if !force && uc.cache != nil {
		cached, err := uc.cache.Get(ctx, fp)
		if err != nil {
			uc.metrics.RecordError("cache_get")
			if uc.l != nil {
				uc.l.Warn("model cache get error", applogger.Error(err))
			}
		} else if cached != nil && cached.Fingerprint == fp {
			uc.metrics.RecordRun("cached")
			uc.results.SetDetection(cached)
			if uc.l != nil {
				uc.l.Info("detection served from cache",
					applogger.String("symbol", cached.Symbol),
					applogger.String("fingerprint", fp),
				)
			}
			return cached, nil
		}
	}

	det, err := uc.detector.Detect(ctx, uc.params.Symbol, rows)
	if err != nil {
		uc.metrics.RecordRun("failed")
		uc.metrics.RecordError("detect")
		return nil, fmt.Errorf("detect: %w", err)
	}

	uc.metrics.RecordRun("ok")
	for label, days := range labelDays(det.Summaries) {
		uc.metrics.RecordRegimeDays(label, days)
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, fp, det); err != nil {
			uc.metrics.RecordError("cache_set")
			if uc.l != nil {
				uc.l.Warn("model cache set error", applogger.Error(err))
			}
		}
	}
	uc.results.SetDetection(det)

	if uc.reporter != nil {
		rep, err := uc.reporter.Report(ctx, uc.params.Symbol, rows, det)
		if err != nil {
			uc.metrics.RecordError("report")
			if uc.l != nil {
				uc.l.Warn("regime report error", applogger.Error(err))
			}
		} else {
			uc.results.SetReport(rep)
		}
	}

	if uc.sim != nil {
		sr, err := uc.sim.Simulate(ctx, uc.params.Symbol, rows)
		if err != nil {
			uc.metrics.RecordError("strategy")
			if uc.l != nil {
				uc.l.Warn("strategy simulation error", applogger.Error(err))
			}
		} else {
			uc.results.SetStrategy(sr)
			if err := uc.router.RouteStrategy(ctx, sr); err != nil {
				return det, fmt.Errorf("route strategy: %w", err)
			}
		}
	}

	if err := uc.router.Route(ctx, det); err != nil {
		return det, fmt.Errorf("route artifacts: %w", err)
	}

	if uc.l != nil {
		uc.l.Info("detection run complete",
			applogger.String("symbol", det.Symbol),
			applogger.Int("observations", len(det.Points)),
			applogger.Int("regimes", len(det.Summaries)),
			applogger.Int("components", det.Model.Components),
			applogger.String("family", det.Model.Family),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return det, nil
}

// loadRows loads equity and VIX bars and builds the modeling features.
func (uc *DetectUsecase) loadRows(ctx context.Context) ([]models.FeatureRow, error) {
	equity, err := uc.bars.Load(ctx, uc.params.Symbol, uc.params.From, uc.params.To)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uc.params.Symbol, err)
	}

	var vix []models.Bar
	if uc.params.VIXSymbol != "" {
		vix, err = uc.bars.Load(ctx, uc.params.VIXSymbol, uc.params.From, uc.params.To)
		if err != nil {
			// VIX gaps degrade to NaN features rather than failing the run
			uc.metrics.RecordError("load_vix")
			if uc.l != nil {
				uc.l.Warn("vix load error, proceeding without",
					applogger.String("symbol", uc.params.VIXSymbol),
					applogger.Error(err),
				)
			}
			vix = nil
		}
	}

	if uc.store != nil {
		if err := uc.store.StoreBars(ctx, equity); err != nil {
			uc.metrics.RecordError("store_bars")
			if uc.l != nil {
				uc.l.Warn("persist equity bars error", applogger.Error(err))
			}
		}
		if len(vix) > 0 {
			if err := uc.store.StoreBars(ctx, vix); err != nil {
				uc.metrics.RecordError("store_bars")
				if uc.l != nil {
					uc.l.Warn("persist vix bars error", applogger.Error(err))
				}
			}
		}
	}

	return features.Build(equity, vix, uc.params.Window)
}

func labelDays(summaries []models.RegimeSummary) map[string]int {
	out := make(map[string]int, 3)
	for _, s := range summaries {
		out[s.Label] += s.Days
	}
	return out
}
