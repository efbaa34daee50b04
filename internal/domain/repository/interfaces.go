package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

type BarStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreBars(ctx context.Context, bars []models.Bar) error
	Load(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type ArtifactStore interface {
	Init(ctx context.Context) error
	StoreDetection(ctx context.Context, d *models.Detection) error
	StoreStrategy(ctx context.Context, r *models.StrategyReport) error
	Close() error
}

type EventPublisher interface {
	PublishChanges(ctx context.Context, d *models.Detection) error
	Close() error
}

type ModelCache interface {
	Get(ctx context.Context, key string) (*models.Detection, error)
	Set(ctx context.Context, key string, d *models.Detection) error
}

type Metrics interface {
	RecordRun(status string)
	RecordStageDuration(stage string, seconds float64)
	RecordRegimeDays(label string, days int)
	RecordArtifactSent(backend, kind string)
	RecordError(kind string)
}
