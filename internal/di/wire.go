//go:build wireinject
// +build wireinject

package di

import (
	"SearchInsight/pkg/config"
	"SearchInsight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Search Console
		ProvideCache,
		ProvideRateLimiter,
		ProvideSearchConsoleHTTPClient,
		ProvideSearchAnalytics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideJobQueue,

		// Repositories
		ProvidePerformanceStore,
		ProvidePublisher,

		// Use cases
		ProvideEngine,
		ProvideInsightService,
		ProvideSnapshotProcessor,
		ProvideSnapshotPipeline,
		ProvideSnapshotCollector,

		// HTTP
		ProvideInsightsHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
