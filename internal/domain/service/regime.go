package service

import (
	"context"

	"RegimeLab/internal/domain/models"
)

// RegimeDetector partitions a feature series into labeled market regimes.
type RegimeDetector interface {
	Detect(ctx context.Context, symbol string, rows []models.FeatureRow) (*models.Detection, error)
}

// StrategySimulator runs the long/flat simulation over a train/test split.
type StrategySimulator interface {
	Simulate(ctx context.Context, symbol string, rows []models.FeatureRow) (*models.StrategyReport, error)
}

// Reporter computes descriptive risk/return statistics for a labeled series.
type Reporter interface {
	Report(ctx context.Context, symbol string, rows []models.FeatureRow, d *models.Detection) (*models.RegimeReport, error)
}
