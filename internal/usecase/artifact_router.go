package usecase

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/models"
	drepo "RegimeLab/internal/domain/repository"
)

// ArtifactRouter routes detection artifacts to the configured backend.
type ArtifactRouter struct {
	store   drepo.ArtifactStore
	pub     drepo.EventPublisher
	metrics drepo.Metrics
	backend drepo.Backend
}

// NewArtifactRouter creates a new ArtifactRouter instance.
func NewArtifactRouter(
	store drepo.ArtifactStore,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	backend drepo.Backend,
) *ArtifactRouter {
	return &ArtifactRouter{
		store:   store,
		pub:     pub,
		metrics: metrics,
		backend: backend,
	}
}

// Route sends a detection to the configured backend.
func (r *ArtifactRouter) Route(ctx context.Context, d *models.Detection) error {
	if d == nil {
		return fmt.Errorf("detection is nil")
	}

	start := time.Now()
	var err error

	switch r.backend {
	case drepo.BackendCSV, drepo.BackendClickHouse:
		err = r.store.StoreDetection(ctx, d)
	case drepo.BackendKafka:
		err = r.pub.PublishChanges(ctx, d)
	default:
		err = fmt.Errorf("unknown backend: %s", r.backend)
	}

	if err != nil {
		r.metrics.RecordError("route")
		return fmt.Errorf("route detection: %w", err)
	}

	r.metrics.RecordArtifactSent(string(r.backend), "detection")
	r.metrics.RecordStageDuration("route", time.Since(start).Seconds())

	return nil
}

// RouteStrategy sends a strategy report to the configured backend.
// Kafka carries only label-change events, so reports flow to storage backends.
func (r *ArtifactRouter) RouteStrategy(ctx context.Context, rep *models.StrategyReport) error {
	if rep == nil {
		return fmt.Errorf("strategy report is nil")
	}

	switch r.backend {
	case drepo.BackendCSV, drepo.BackendClickHouse:
		if err := r.store.StoreStrategy(ctx, rep); err != nil {
			r.metrics.RecordError("route_strategy")
			return fmt.Errorf("route strategy: %w", err)
		}
		r.metrics.RecordArtifactSent(string(r.backend), "strategy")
	case drepo.BackendKafka:
	default:
		return fmt.Errorf("unknown backend: %s", r.backend)
	}

	return nil
}

// Close closes underlying resources if available.
func (r *ArtifactRouter) Close() {
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}
