//go:build wireinject
// +build wireinject

package di

import (
	"SignalFlow/pkg/config"
	"SignalFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideQueue,
		ProvideQueueService,

		// Repositories
		ProvideMarketStore,
		ProvideIndicatorSource,
		ProvideCandleSource,
		ProvideWorkflowStoreImpl,
		ProvideWorkflowStore,
		ProvideRunStore,

		// Signal engine
		ProvideRegistry,
		ProvideEngine,
		ProvideMultiTimeframe,

		// Workflow engine
		ProvideTracker,
		ProvideExecutor,
		ProvideWebSocketHub,
		ProvideDeliverer,

		// Use cases
		ProvideSignalService,
		ProvideWorkflowService,
		ProvideExecuteWorkflowJob,

		// HTTP handlers
		ProvideSignalsHandler,
		ProvideWorkflowsHandler,
		ProvideMarketHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
