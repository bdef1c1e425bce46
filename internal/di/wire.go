//go:build wireinject
// +build wireinject

package di

import (
	"SentiTrade/pkg/config"
	"SentiTrade/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// The cleanup closes every client that was opened, in reverse order.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedis,
		ProvideCache,
		ProvidePostgres,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Stores
		ProvideStores,
		ProvidePositionStore,
		ProvideTradeStore,
		ProvideObservationReader,
		ProvideDecisionJournal,
		ProvideTradePublisher,

		// External services
		ProvidePriceOracle,
		ProvideBroker,
		ProvideConfigResolver,
		ProvideLocker,

		// Use cases
		ProvideAggregator,
		ProvideDecisionEngine,
		ProvideOrderExecutor,
		ProvideReconciler,
		ProvideTradingCycle,
		ProvideManualTrader,
		ProvideInsights,
		ProvideKafkaObservationsHandler,
		ProvideKafkaConsumer,
		ProvideScheduler,

		// HTTP
		ProvideRateLimiter,
		ProvideHealthChecks,
		ProvideTradingHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
