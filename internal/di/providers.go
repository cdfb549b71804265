package di

import (
	"context"
	"fmt"
	"time"

	"SignalFlow/internal/aggregation"
	"SignalFlow/internal/delivery"
	"SignalFlow/internal/domain/repository"
	"SignalFlow/internal/handler/api"
	internalrepo "SignalFlow/internal/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/internal/usecase"
	"SignalFlow/internal/workflow"
	"SignalFlow/pkg/cache"
	pkgch "SignalFlow/pkg/clickhouse"
	"SignalFlow/pkg/config"
	xhttp "SignalFlow/pkg/http"
	pkgkafka "SignalFlow/pkg/kafka"
	applogger "SignalFlow/pkg/logger"
	"SignalFlow/pkg/metrics"
	pkgqueue "SignalFlow/pkg/queue"
	"SignalFlow/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	return applogger.New(lc)
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS signalflow",
		`CREATE TABLE IF NOT EXISTS signalflow.indicators (
            symbol_id Int64, tf String, kind String, ts DateTime, price Float64,
            fast Float64, slow Float64, macd Float64, macd_signal Float64, macd_hist Float64,
            rsi Float64, upper_band Float64, middle_band Float64, lower_band Float64
        ) ENGINE=MergeTree ORDER BY (symbol_id, tf, kind, ts)`,
		`CREATE TABLE IF NOT EXISTS signalflow.candles (
            bucket DateTime, symbol_id Int64, tf String,
            open Float64, high Float64, low Float64, close Float64, vol Float64
        ) ENGINE=MergeTree ORDER BY (symbol_id, tf, bucket)`,
		`CREATE TABLE IF NOT EXISTS signalflow.workflows (
            id String, name String, nodes String, edges String, properties String,
            status String, created_at DateTime, updated_at DateTime
        ) ENGINE=ReplacingMergeTree(updated_at) ORDER BY id`,
		`CREATE TABLE IF NOT EXISTS signalflow.workflow_runs (
            run_id String, workflow_id String, status String,
            started_at DateTime, finished_at DateTime, duration_ms Int64, meta String
        ) ENGINE=ReplacingMergeTree(finished_at) ORDER BY run_id`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideRedisClient creates the shared Redis connection used by the queue.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideCache creates the layered cache backing indicator reads.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	opts := []cache.RedisOption{
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	}
	if cfg.Cache.Prefix != "" {
		opts = append(opts, cache.WithRedisPrefix(cfg.Cache.Prefix))
	}
	rc, err := cache.NewRedisCache(opts...)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

// ProvideKafkaProducer creates a Kafka producer. Kafka is optional: no
// brokers configured means no producer and no kafka delivery channel.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideMarketStore creates the ClickHouse market data store.
func ProvideMarketStore(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHMarketStore {
	store := internalrepo.NewCHMarketStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideIndicatorSource wraps the market store with the layered cache.
func ProvideIndicatorSource(store *internalrepo.CHMarketStore, c cache.Service, l *applogger.Logger) repository.IndicatorSource {
	return internalrepo.NewCachedIndicatorSource(store, c, l)
}

// ProvideCandleSource exposes the market store's candle reads.
func ProvideCandleSource(store *internalrepo.CHMarketStore) repository.CandleSource {
	return store
}

// ProvideWorkflowStoreImpl creates the ClickHouse workflow/run store.
func ProvideWorkflowStoreImpl(ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHWorkflowStore {
	store := internalrepo.NewCHWorkflowStore(ch)
	store.SetLogger(l)
	return store
}

// ProvideWorkflowStore exposes the workflow side of the store.
func ProvideWorkflowStore(s *internalrepo.CHWorkflowStore) repository.WorkflowStore { return s }

// ProvideRunStore exposes the run side of the store.
func ProvideRunStore(s *internalrepo.CHWorkflowStore) repository.RunStore { return s }

// ProvideRegistry creates the strategy registry seeded with the default set.
func ProvideRegistry(source repository.IndicatorSource) (*strategy.Registry, error) {
	registry := strategy.NewRegistry()
	defaults, err := strategy.Defaults(source)
	if err != nil {
		return nil, fmt.Errorf("default strategies: %w", err)
	}
	for _, s := range defaults {
		if err := registry.Register(s); err != nil {
			return nil, fmt.Errorf("register %s: %w", s.Name(), err)
		}
	}
	return registry, nil
}

// ProvideEngine creates the aggregation engine from configuration.
func ProvideEngine(cfg *config.Config) (*aggregation.Engine, error) {
	agg := aggregation.DefaultConfig()
	if cfg.Engine.Aggregation.Method != "" {
		method, err := aggregation.ParseMethod(cfg.Engine.Aggregation.Method)
		if err != nil {
			return nil, err
		}
		agg.Method = method
		agg.MinStrategies = cfg.Engine.Aggregation.MinStrategies
		agg.ConsensusThreshold = cfg.Engine.Aggregation.ConsensusThreshold
		agg.ConfidenceThreshold = cfg.Engine.Aggregation.ConfidenceThreshold
		agg.ConflictPenalty = cfg.Engine.Aggregation.ConflictPenalty
	}
	return aggregation.NewEngine(agg)
}

// ProvideMultiTimeframe creates the timeframe roll-up layer.
func ProvideMultiTimeframe(cfg *config.Config) *aggregation.MultiTimeframe {
	var weights map[repository.Timeframe]float64
	if len(cfg.Engine.TimeframeWeights) > 0 {
		weights = make(map[repository.Timeframe]float64, len(cfg.Engine.TimeframeWeights))
		for tf, w := range cfg.Engine.TimeframeWeights {
			weights[repository.Timeframe(tf)] = w
		}
	}
	return aggregation.NewMultiTimeframe(weights, cfg.Engine.DirectionFloor)
}

// ProvideWebSocketHub creates the signal stream hub.
func ProvideWebSocketHub(l *applogger.Logger) *delivery.WebSocketHub {
	return delivery.NewWebSocketHub(l)
}

// ProvideDeliverer assembles the delivery router from configured sinks.
func ProvideDeliverer(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	hub *delivery.WebSocketHub,
	m repository.Metrics,
	l *applogger.Logger,
) repository.Deliverer {
	sinks := []delivery.Sink{delivery.NewLogSink(l), hub}
	if producer != nil {
		sinks = append(sinks, delivery.NewKafkaSink(producer, cfg.Kafka.Topic))
	}
	if cfg.Delivery.Webhook.URL != "" {
		var copts []xhttp.ClientOption
		if cfg.Delivery.Webhook.Timeout > 0 {
			copts = append(copts, xhttp.WithTimeout(cfg.Delivery.Webhook.Timeout))
		}
		sinks = append(sinks, delivery.NewWebhookSink(xhttp.NewClient(copts...), cfg.Delivery.Webhook.URL, cfg.Delivery.Webhook.Headers))
	}
	return delivery.NewRouter(m, l, sinks...)
}

// ProvideTracker creates the run tracker.
func ProvideTracker(rs repository.RunStore) *workflow.Tracker {
	return workflow.NewTracker(rs)
}

// ProvideExecutor creates the workflow executor.
func ProvideExecutor(
	registry *strategy.Registry,
	engine *aggregation.Engine,
	mtf *aggregation.MultiTimeframe,
	candles repository.CandleSource,
	deliverer repository.Deliverer,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *workflow.Executor {
	return workflow.NewExecutor(registry, engine, mtf, candles, deliverer, m, l, cfg.Engine.Concurrency)
}

// ProvideQueue creates the Redis task queue in producer-consumer mode.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, client *redis.Client) *pkgqueue.RedisQueue {
	var opts []pkgqueue.RedisQueueOption
	if cfg.Queue.KeyPrefix != "" {
		opts = append(opts, pkgqueue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	}
	return pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, pkgqueue.ModeProducerConsumer, opts...)
}

// ProvideQueueService exposes the queue's publish side.
func ProvideQueueService(q *pkgqueue.RedisQueue) pkgqueue.QueueService { return q }

// ProvideSignalService creates the signal evaluation use case.
func ProvideSignalService(
	registry *strategy.Registry,
	engine *aggregation.Engine,
	mtf *aggregation.MultiTimeframe,
	source repository.IndicatorSource,
	m repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.SignalService {
	return usecase.NewSignalService(registry, engine, mtf, source, m, l,
		cfg.Engine.EvalTimeout, cfg.Engine.Concurrency)
}

// ProvideWorkflowService creates the workflow orchestration use case.
func ProvideWorkflowService(
	store repository.WorkflowStore,
	tracker *workflow.Tracker,
	executor *workflow.Executor,
	qs pkgqueue.QueueService,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.WorkflowService {
	return usecase.NewWorkflowService(store, tracker, executor, qs, m, l)
}

// ProvideExecuteWorkflowJob creates the queued workflow execution handler.
func ProvideExecuteWorkflowJob(ws *usecase.WorkflowService, l *applogger.Logger) *usecase.ExecuteWorkflowJob {
	return usecase.NewExecuteWorkflowJob(ws, l)
}

// ProvideSignalsHandler creates the signals API handler.
func ProvideSignalsHandler(l *applogger.Logger, ss *usecase.SignalService) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(l, ss)
}

// ProvideWorkflowsHandler creates the workflows API handler.
func ProvideWorkflowsHandler(l *applogger.Logger, ws *usecase.WorkflowService) *api.WorkflowsEchoHandler {
	return api.NewWorkflowsEchoHandler(l, ws)
}

// ProvideMarketHandler creates the market data API handler.
func ProvideMarketHandler(l *applogger.Logger, candles repository.CandleSource) *api.MarketEchoHandler {
	return api.NewMarketEchoHandler(l, candles)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	q *pkgqueue.RedisQueue,
	job *usecase.ExecuteWorkflowJob,
	chClient *pkgch.Client,
	redisClient *redis.Client,
	producer *pkgkafka.Producer,
	hub *delivery.WebSocketHub,
	signals *api.SignalsEchoHandler,
	workflows *api.WorkflowsEchoHandler,
	market *api.MarketEchoHandler,
) *server.App {
	q.RegisterJob(job)
	return server.New(cfg, l, q, chClient, redisClient, producer, hub, signals, workflows, market)
}
