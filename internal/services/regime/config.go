package regime

import "fmt"

// CovFamily names a covariance parameterization of the mixture model,
// following the mclust naming scheme.
type CovFamily string

const (
	// FamilyEEE shares one full covariance matrix across all components.
	FamilyEEE CovFamily = "EEE"
	// FamilyVEE shares shape and orientation but lets each component scale
	// its own volume.
	FamilyVEE CovFamily = "VEE"
)

// IsValidFamily returns true if f is a supported covariance family.
func IsValidFamily(f CovFamily) bool {
	switch f {
	case FamilyEEE, FamilyVEE:
		return true
	default:
		return false
	}
}

// Config controls the detection pipeline. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	// ConfidenceThreshold is the minimum posterior for a hard assignment.
	ConfidenceThreshold float64
	// MinRegimeLen is the shortest regime segment that survives smoothing.
	MinRegimeLen int
	// MinComponents..MaxComponents is the model grid, inclusive.
	MinComponents int
	MaxComponents int
	// Families is the covariance family grid, tried in order.
	Families []CovFamily
	// Seed makes the EM initialization reproducible.
	Seed int64
	// MaxIterations caps one EM run; runs that do not converge within the
	// cap are excluded from model selection.
	MaxIterations int
	// Tolerance is the relative log-likelihood improvement below which EM
	// is considered converged.
	Tolerance float64
	// Restarts is the number of seeded initializations per grid candidate.
	Restarts int
}

// DefaultConfig returns the standard detection configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.60,
		MinRegimeLen:        10,
		MinComponents:       2,
		MaxComponents:       4,
		Families:            []CovFamily{FamilyEEE, FamilyVEE},
		Seed:                42,
		MaxIterations:       500,
		Tolerance:           1e-6,
		Restarts:            3,
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %g", c.ConfidenceThreshold)
	}
	if c.MinRegimeLen < 1 {
		return fmt.Errorf("min regime length must be >= 1, got %d", c.MinRegimeLen)
	}
	if c.MinComponents < 1 || c.MaxComponents < c.MinComponents {
		return fmt.Errorf("component range [%d, %d] is invalid", c.MinComponents, c.MaxComponents)
	}
	if len(c.Families) == 0 {
		return fmt.Errorf("at least one covariance family is required")
	}
	for _, f := range c.Families {
		if !IsValidFamily(f) {
			return fmt.Errorf("unknown covariance family %q", f)
		}
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be > 0, got %g", c.Tolerance)
	}
	if c.Restarts < 1 {
		return fmt.Errorf("restarts must be >= 1, got %d", c.Restarts)
	}
	return nil
}
