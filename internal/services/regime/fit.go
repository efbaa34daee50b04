package regime

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"RegimeLab/pkg/logger"
)

// Fitter runs the mixture model grid search over components and covariance
// families and selects by BIC.
type Fitter struct {
	cfg Config
	l   *logger.Logger
}

func NewFitter(cfg Config) *Fitter {
	return &Fitter{cfg: cfg}
}

// SetLogger injects an optional logger for per-candidate diagnostics.
func (f *Fitter) SetLogger(l *logger.Logger) { f.l = l }

// FitResult pairs the selected model with its posteriors over the fitted rows.
type FitResult struct {
	Model      *Model
	Posteriors *mat.Dense
}

// Fit evaluates every (components, family) candidate in deterministic order
// and returns the lowest-BIC model. Candidates are enumerated components
// ascending with families in configured order, so an exact BIC tie resolves
// to fewer components first, then earlier family.
func (f *Fitter) Fit(X *mat.Dense) (*FitResult, error) {
	n, _ := X.Dims()
	var (
		best    *Model
		tried   int
		lastErr error
	)
	for g := f.cfg.MinComponents; g <= f.cfg.MaxComponents; g++ {
		for _, fam := range f.cfg.Families {
			tried++
			cand, err := f.fitOne(X, g, fam, int64(tried))
			if err != nil {
				lastErr = fmt.Errorf("G=%d %s: %w", g, fam, err)
				if f.l != nil {
					f.l.Warn("mixture candidate failed",
						logger.Int("components", g),
						logger.String("family", string(fam)),
						logger.Error(err))
				}
				continue
			}
			cand.BIC = -2*cand.LogLik + float64(cand.NumParams())*math.Log(float64(n))
			if f.l != nil {
				f.l.Debug("mixture candidate fitted",
					logger.Int("components", g),
					logger.String("family", string(fam)),
					logger.Any("loglik", cand.LogLik),
					logger.Any("bic", cand.BIC),
					logger.Int("iterations", cand.Iterations))
			}
			if best == nil || cand.BIC < best.BIC {
				best = cand
			}
		}
	}
	if best == nil {
		return nil, &FittingError{Candidates: tried, Rows: n, LastErr: lastErr}
	}
	post, err := best.Posteriors(X)
	if err != nil {
		return nil, &FittingError{Candidates: tried, Rows: n, LastErr: err}
	}
	return &FitResult{Model: best, Posteriors: post}, nil
}

// fitOne runs the configured number of seeded restarts for one grid cell and
// keeps the best converged run by log-likelihood.
func (f *Fitter) fitOne(X *mat.Dense, g int, fam CovFamily, candIdx int64) (*Model, error) {
	rng := rand.New(rand.NewSource(f.cfg.Seed + candIdx*1009))
	var (
		best    *Model
		lastErr error
	)
	for r := 0; r < f.cfg.Restarts; r++ {
		m, err := fitCandidate(X, g, fam, rng, f.cfg.MaxIterations, f.cfg.Tolerance)
		if err != nil {
			lastErr = err
			continue
		}
		if best == nil || m.LogLik > best.LogLik {
			best = m
		}
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}
