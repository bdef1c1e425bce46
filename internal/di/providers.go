package di

import (
	"context"
	"fmt"
	"time"

	domrepo "SentiTrade/internal/domain/repository"
	"SentiTrade/internal/handler/api"
	internalrepo "SentiTrade/internal/repository"
	"SentiTrade/internal/scheduler"
	"SentiTrade/internal/service/broker"
	"SentiTrade/internal/service/lock"
	"SentiTrade/internal/service/price"
	"SentiTrade/internal/service/ratelimit"
	"SentiTrade/internal/service/tradecfg"
	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/cache"
	pkgch "SentiTrade/pkg/clickhouse"
	"SentiTrade/pkg/config"
	xhttp "SentiTrade/pkg/http"
	pkgkafka "SentiTrade/pkg/kafka"
	applogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/metrics"
	"SentiTrade/pkg/postgres"
	"SentiTrade/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const connectTimeout = 10 * time.Second

// Stores groups the persistence ports chosen from config.
// Durable backends replace the in-memory store when they are enabled.
type Stores struct {
	Memory       *internalrepo.MemoryStore
	Positions    domrepo.PositionStore
	Trades       domrepo.TradeStore
	Observations domrepo.ObservationReader
	Writers      []domrepo.ObservationWriter
}

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.NewWithRegisterer(prometheus.DefaultRegisterer)
}

// ProvideRedis returns nil when redis is disabled.
func ProvideRedis(cfg *config.Config, logger *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 0, 0),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	logger.Info("redis connected", applogger.String("host", cfg.Redis.Host), applogger.Int("port", cfg.Redis.Port))
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Warn("redis close", applogger.Error(err))
		}
	}, nil
}

// ProvideCache falls back to an in-process cache when redis is disabled.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return rc
}

// ProvidePostgres returns nil when postgres is disabled.
func ProvidePostgres(cfg *config.Config, logger *applogger.Logger) (*postgres.Client, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	pg, err := postgres.New(postgres.Option{
		URL:      cfg.Postgres.URL,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
		Params:   cfg.Postgres.Params,

		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("postgres ping: %w", err)
	}
	logger.Info("postgres connected", applogger.String("database", cfg.Postgres.Database))
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Warn("postgres close", applogger.Error(err))
		}
	}, nil
}

// ProvideStores picks postgres for positions/trades when enabled and
// reads observations from redis first, falling back to the durable store.
func ProvideStores(cfg *config.Config, pg *postgres.Client, rc *cache.RedisCache, logger *applogger.Logger) (*Stores, error) {
	mem := internalrepo.NewMemoryStore()
	s := &Stores{Memory: mem, Positions: mem, Trades: mem, Observations: mem}

	var durable interface {
		domrepo.ObservationReader
		domrepo.ObservationWriter
	} = mem
	if pg != nil {
		store := internalrepo.NewPostgresStore(pg.DB(), logger)
		if cfg.Postgres.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
			defer cancel()
			if err := store.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		s.Positions, s.Trades, durable = store, store, store
	}
	s.Observations = durable

	if rc != nil {
		hot := internalrepo.NewRedisObservations(rc.Client(), cfg.Trading.Retention, logger)
		s.Observations = internalrepo.NewFallbackReader(hot, durable, logger)
		s.Writers = append(s.Writers, hot)
	}
	s.Writers = append(s.Writers, durable)
	return s, nil
}

func ProvidePositionStore(s *Stores) domrepo.PositionStore         { return s.Positions }
func ProvideTradeStore(s *Stores) domrepo.TradeStore               { return s.Trades }
func ProvideObservationReader(s *Stores) domrepo.ObservationReader { return s.Observations }

// ProvideClickHouseClient returns nil when the decision journal is disabled.
func ProvideClickHouseClient(cfg *config.Config, logger *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.JournalSchema(cfg.ClickHouse.Database, "")); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	logger.Info("clickhouse journal ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, func() {
		if err := client.Close(); err != nil {
			logger.Warn("clickhouse close", applogger.Error(err))
		}
	}, nil
}

// ProvideDecisionJournal keeps decisions in memory unless clickhouse is enabled.
func ProvideDecisionJournal(ch *pkgch.Client, s *Stores, cfg *config.Config) domrepo.DecisionJournal {
	if ch == nil {
		return s.Memory
	}
	return internalrepo.NewClickHouseJournal(ch.DB(), cfg.ClickHouse.Database+".decision_journal")
}

// ProvideKafkaProducer returns nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, logger *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Compression, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close", applogger.Error(err))
		}
	}, nil
}

// ProvideTradePublisher returns a nil interface when there is no producer.
func ProvideTradePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.TradePublisher {
	if producer == nil || cfg.Kafka.TradesTopic == "" {
		return nil
	}
	return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.TradesTopic)
}

// ProvideKafkaObservationsHandler writes consumed observations to every configured sink.
func ProvideKafkaObservationsHandler(s *Stores, m domrepo.Metrics, cfg *config.Config) *usecase.KafkaObservationsHandler {
	return usecase.NewKafkaObservationsHandler(cfg.Kafka.ObservationsTopic, m, s.Writers...)
}

// ProvideKafkaConsumer returns nil when kafka or the observations topic is disabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	handler *usecase.KafkaObservationsHandler,
	m domrepo.Metrics,
	logger *applogger.Logger,
) (*pkgkafka.Consumer, func(), error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.ObservationsTopic == "" {
		return nil, func() {}, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(logger),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(handler)
	consumer.WithConsumerHook(pkgkafka.HookFuncs{
		Err: func(_ context.Context, topic string, _ kafka.Message, _ error) {
			m.RecordError("kafka_" + topic)
		},
	})
	return consumer, func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := consumer.Stop(ctx); err != nil {
			logger.Warn("kafka consumer stop", applogger.Error(err))
		}
	}, nil
}

func ProvidePriceOracle(cfg *config.Config, logger *applogger.Logger) domrepo.PriceOracle {
	if cfg.Price.Type == "static" {
		return price.NewStatic(cfg.Price.Static)
	}
	return price.NewYahoo(logger)
}

func ProvideBroker(cfg *config.Config, prices domrepo.PriceOracle) (domrepo.Broker, error) {
	if cfg.Broker.Type == "paper" {
		return broker.NewPaperBroker(prices, decimal.NewFromFloat(cfg.Broker.PaperCash)), nil
	}
	client, err := broker.NewAlpacaClient(
		broker.WithBaseURL(cfg.Broker.BaseURL),
		broker.WithCredentials(cfg.Broker.APIKey, cfg.Broker.APISecret),
		broker.WithTimeout(cfg.Broker.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("alpaca: %w", err)
	}
	return client, nil
}

func ProvideConfigResolver(cfg *config.Config, c cache.Service, logger *applogger.Logger) domrepo.ConfigResolver {
	var src tradecfg.Source = tradecfg.NewFileSource(cfg.Trading.ConfigPath)
	if cfg.Trading.ConfigSource == "redis" {
		src = tradecfg.NewCacheSource(c, cfg.Trading.ConfigKey)
	}
	return tradecfg.NewResolver(src, tradecfg.Defaults{
		SentimentThreshold: cfg.Trading.SentimentThreshold,
		MaxNotional:        decimal.NewFromFloat(cfg.Trading.MaxPositionSize),
	}, logger)
}

// ProvideLocker uses a redis lease when redis is enabled so several replicas serialize per instrument.
func ProvideLocker(cfg *config.Config, rc *cache.RedisCache) domrepo.InstrumentLocker {
	if rc == nil {
		return lock.NewLocal()
	}
	return lock.NewDistributed(rc, cfg.Scheduler.LockTTL)
}

func ProvideAggregator(reader domrepo.ObservationReader, m domrepo.Metrics, logger *applogger.Logger, cfg *config.Config) *usecase.SentimentAggregator {
	return usecase.NewSentimentAggregator(reader, m, logger,
		usecase.WithObservationLimit(cfg.Trading.ObservationLimit),
		usecase.WithRetention(cfg.Trading.Retention),
	)
}

func ProvideDecisionEngine(cfg *config.Config) *usecase.DecisionEngine {
	return usecase.NewDecisionEngine(decimal.NewFromFloat(cfg.Trading.MaxPositionSize))
}

func ProvideOrderExecutor(
	b domrepo.Broker,
	trades domrepo.TradeStore,
	locker domrepo.InstrumentLocker,
	m domrepo.Metrics,
	logger *applogger.Logger,
	publisher domrepo.TradePublisher,
	cfg *config.Config,
) *usecase.OrderExecutor {
	opts := []usecase.ExecutorOption{
		usecase.WithSettleWait(cfg.Scheduler.SettleWait),
		usecase.WithOrderTimeout(cfg.Scheduler.OrderTimeout),
	}
	if publisher != nil {
		opts = append(opts, usecase.WithTradePublisher(publisher))
	}
	return usecase.NewOrderExecutor(b, trades, locker, m, logger,
		decimal.NewFromFloat(cfg.Trading.MaxPositionSize), opts...)
}

func ProvideReconciler(b domrepo.Broker, positions domrepo.PositionStore, m domrepo.Metrics, logger *applogger.Logger) *usecase.PositionReconciler {
	return usecase.NewPositionReconciler(b, positions, m, logger)
}

func ProvideTradingCycle(
	resolver domrepo.ConfigResolver,
	aggregator *usecase.SentimentAggregator,
	engine *usecase.DecisionEngine,
	executor *usecase.OrderExecutor,
	reconciler *usecase.PositionReconciler,
	b domrepo.Broker,
	positions domrepo.PositionStore,
	prices domrepo.PriceOracle,
	journal domrepo.DecisionJournal,
	m domrepo.Metrics,
	logger *applogger.Logger,
	cfg *config.Config,
) *usecase.TradingCycle {
	return usecase.NewTradingCycle(resolver, aggregator, engine, executor, reconciler, b, positions, prices, m, logger,
		usecase.WithInstrumentDelay(cfg.Scheduler.InstrumentDelay),
		usecase.WithInstrumentTimeout(cfg.Scheduler.InstrumentTimeout),
		usecase.WithFallbackSymbols(cfg.Trading.Symbols),
		usecase.WithDecisionJournal(journal),
	)
}

func ProvideScheduler(cycle *usecase.TradingCycle, reconciler *usecase.PositionReconciler, logger *applogger.Logger, cfg *config.Config) *scheduler.Scheduler {
	return scheduler.New(cycle, reconciler, logger,
		scheduler.WithCycleInterval(cfg.Scheduler.CycleInterval),
		scheduler.WithReconcileInterval(cfg.Scheduler.ReconcileInterval),
	)
}

func ProvideManualTrader(executor *usecase.OrderExecutor, prices domrepo.PriceOracle, resolver domrepo.ConfigResolver, logger *applogger.Logger) *usecase.ManualTrader {
	return usecase.NewManualTrader(executor, prices, resolver, logger)
}

func ProvideInsights(
	resolver domrepo.ConfigResolver,
	aggregator *usecase.SentimentAggregator,
	reader domrepo.ObservationReader,
	b domrepo.Broker,
	positions domrepo.PositionStore,
	trades domrepo.TradeStore,
	logger *applogger.Logger,
) *usecase.Insights {
	return usecase.NewInsights(resolver, aggregator, reader, b, positions, trades, logger)
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.TradeBurst, cfg.Server.TradeRateLimit)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// ProvideHealthChecks lists one probe per enabled backend.
func ProvideHealthChecks(rc *cache.RedisCache, pg *postgres.Client, ch *pkgch.Client, b domrepo.Broker) []api.HealthCheck {
	var checks []api.HealthCheck
	if rc != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: rc.Ping})
	}
	if pg != nil {
		checks = append(checks, api.HealthCheck{Name: "postgres", Check: pg.Ping})
	}
	if ch != nil {
		checks = append(checks, api.HealthCheck{Name: "clickhouse", Check: ch.Health})
	}
	if p, ok := b.(pinger); ok {
		checks = append(checks, api.HealthCheck{Name: "broker", Check: p.Ping})
	}
	return checks
}

func ProvideTradingHandler(
	logger *applogger.Logger,
	manual *usecase.ManualTrader,
	insights *usecase.Insights,
	sched *scheduler.Scheduler,
	limiter *ratelimit.Limiter,
	checks []api.HealthCheck,
) *api.TradingHandler {
	return api.NewTradingHandler(logger, manual, insights, sched, limiter, checks...)
}

func ProvideHTTPServer(cfg *config.Config, logger *applogger.Logger, h *api.TradingHandler) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(logger, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(path, prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
	)
}

func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	httpServer *xhttp.Server,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(cfg, logger, httpServer, sched, consumer)
}
