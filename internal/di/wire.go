//go:build wireinject
// +build wireinject

package di

import (
	"RegimeLab/pkg/config"
	"RegimeLab/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        // Observability
        ProvideLogger,
        ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories (bar sources and artifact sinks)
		ProvideBarSource,
		ProvideBarStore,
		ProvideArtifactStore,
		ProvideEventPublisher,
		ProvideModelCache,

        // Domain services
        ProvideDetector,
        ProvideSimulator,
        ProvideReporter,

        // Use cases
        ProvideResults,
        ProvideArtifactRouter,
        ProvideDetectUsecase,

        // Serving layer
        ProvideQueue,
        ProvideRunGuard,
        ProvideHandler,

        // Application server
        ProvideApp,
    )
    return &server.App{}, nil
}
