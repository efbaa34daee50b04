package di

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "strings"
    "time"

    "RegimeLab/internal/domain/repository"
    domsvc "RegimeLab/internal/domain/service"
    "RegimeLab/internal/handler/api"
    mid "RegimeLab/internal/middleware"
    internalrepo "RegimeLab/internal/repository"
    icache "RegimeLab/internal/service/cache"
    "RegimeLab/internal/service/stooq"
    "RegimeLab/internal/services/backtest"
    "RegimeLab/internal/services/regime"
    "RegimeLab/internal/services/report"
    "RegimeLab/internal/usecase"
    pkgcache "RegimeLab/pkg/cache"
    pkgch "RegimeLab/pkg/clickhouse"
    "RegimeLab/pkg/config"
    pkgkafka "RegimeLab/pkg/kafka"
    applogger "RegimeLab/pkg/logger"
    "RegimeLab/pkg/metrics"
    pkgqueue "RegimeLab/pkg/queue"
    "RegimeLab/pkg/server"
    "RegimeLab/pkg/util"

    "github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client when either the bar
// source or the artifact backend needs one.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if repository.Source(cfg.Data.Source) != repository.SourceClickHouse &&
		repository.Backend(cfg.Artifacts.Backend) != repository.BackendClickHouse {
		return nil, nil
	}

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

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.daily_bars (date DateTime, symbol String, open Float64, high Float64, low Float64, close Float64, volume Float64) ENGINE=ReplacingMergeTree ORDER BY (symbol, date)", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.regime_daily (symbol String, date DateTime, regime_id Int32, label String, fitted_at DateTime) ENGINE=ReplacingMergeTree ORDER BY (symbol, date)", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.regime_summary (symbol String, regime_id Int32, days UInt32, mean_return Float64, mean_vol Float64, mean_drawdown Float64, mean_vix Float64, label String, fitted_at DateTime) ENGINE=MergeTree ORDER BY (symbol, fitted_at, regime_id)", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.regime_transitions (symbol String, from_label String, to_label String, prob Float64, fitted_at DateTime) ENGINE=MergeTree ORDER BY (symbol, fitted_at, from_label, to_label)", db),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s.strategy_reports (symbol String, segment String, kind String, split_date DateTime, train_frac Float64, days UInt32, total_return Float64, ann_return Float64, ann_vol Float64, sharpe Float64, max_drawdown Float64, created_at DateTime) ENGINE=MergeTree ORDER BY (symbol, created_at)", db),
	}); err != nil {
		_ = client.Close() // propagate the schema error, not the close error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer for the kafka artifact backend.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if repository.Backend(cfg.Artifacts.Backend) != repository.BackendKafka {
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

// ProvideBarSource selects the daily bar source from config.
func ProvideBarSource(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) (repository.BarSource, error) {
	switch repository.Source(cfg.Data.Source) {
	case repository.SourceCSV:
		paths := map[string]string{cfg.Data.Symbol: cfg.Data.CSV.EquityPath}
		if cfg.Data.VIXSymbol != "" {
			paths[cfg.Data.VIXSymbol] = cfg.Data.CSV.VIXPath
		}
		src := internalrepo.NewCSVBarSource(paths)
		src.SetLogger(l)
		return src, nil
	case repository.SourceClickHouse:
		if chClient == nil {
			return nil, fmt.Errorf("clickhouse bar source requires a clickhouse client")
		}
		store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database)
		store.SetLogger(l)
		return store, nil
	case repository.SourceStooq:
		c := stooq.New(cfg.Data.Stooq.BaseURL, cfg.Data.Stooq.Timeout, cfg.Data.Stooq.RequestsPerSec)
		c.SetLogger(l)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", cfg.Data.Source)
	}
}

// ProvideBarStore persists remotely fetched bars when ClickHouse is around.
// Local sources read their own files and need no store.
func ProvideBarStore(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) repository.BarStore {
	if repository.Source(cfg.Data.Source) != repository.SourceStooq || chClient == nil {
		return nil
	}
	store := internalrepo.NewCHBarStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideArtifactStore creates the detection artifact store for storage backends.
// The kafka backend publishes events instead and has no store.
func ProvideArtifactStore(cfg *config.Config, chClient *pkgch.Client, l *applogger.Logger) (repository.ArtifactStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch repository.Backend(cfg.Artifacts.Backend) {
	case repository.BackendCSV:
		exp := internalrepo.NewCSVExporter(cfg.Artifacts.OutputDir)
		exp.SetLogger(l)
		if err := exp.Init(ctx); err != nil {
			return nil, fmt.Errorf("csv exporter: %w", err)
		}
		return exp, nil
	case repository.BackendClickHouse:
		if chClient == nil {
			return nil, fmt.Errorf("clickhouse artifact backend requires a clickhouse client")
		}
		store := internalrepo.NewCHArtifactStore(chClient, cfg.ClickHouse.Database)
		store.SetLogger(l)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("clickhouse artifact store: %w", err)
		}
		return store, nil
	case repository.BackendKafka:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Artifacts.Backend)
	}
}

// ProvideEventPublisher creates the Kafka label-change publisher.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if repository.Backend(cfg.Artifacts.Backend) != repository.BackendKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

// ProvideModelCache builds the fingerprint-keyed detection cache. Redis layers
// under memory when enabled, otherwise the cache runs memory-only.
func ProvideModelCache(cfg *config.Config, l *applogger.Logger) repository.ModelCache {
	if cfg.Cache.Redis.Enabled {
		host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
		port, _ := strconv.Atoi(portStr)
		if err != nil || port <= 0 {
			l.Warn("invalid redis addr, using memory cache",
				applogger.String("addr", cfg.Cache.Redis.Addr))
		} else {
			rc, rerr := pkgcache.NewRedisCache(
				pkgcache.WithRedisHost(host),
				pkgcache.WithRedisPort(port),
				pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
				pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			)
			if rerr != nil {
				l.Warn("redis cache unavailable, using memory cache", applogger.Error(rerr))
			} else {
				return internalrepo.NewModelCacheStore(pkgcache.NewLayeredCache(rc), cfg.Cache.ModelTTL)
			}
		}
	}
	return internalrepo.NewModelCacheStore(pkgcache.NewMemoryCache(), cfg.Cache.ModelTTL)
}

// ProvideDetector builds the regime detector, falling back to defaults for
// unset config values.
func ProvideDetector(cfg *config.Config, l *applogger.Logger, m repository.Metrics) (*regime.Detector, error) {
	rc := regime.DefaultConfig()
	if cfg.Regime.ConfidenceThreshold > 0 {
		rc.ConfidenceThreshold = cfg.Regime.ConfidenceThreshold
	}
	if cfg.Regime.MinRegimeLength > 0 {
		rc.MinRegimeLen = cfg.Regime.MinRegimeLength
	}
	if cfg.Regime.MinComponents > 0 {
		rc.MinComponents = cfg.Regime.MinComponents
	}
	if cfg.Regime.MaxComponents > 0 {
		rc.MaxComponents = cfg.Regime.MaxComponents
	}
	if len(cfg.Regime.Families) > 0 {
		fams := make([]regime.CovFamily, 0, len(cfg.Regime.Families))
		for _, f := range cfg.Regime.Families {
			fams = append(fams, regime.CovFamily(strings.ToUpper(f)))
		}
		rc.Families = fams
	}
	if cfg.Regime.Seed != 0 {
		rc.Seed = cfg.Regime.Seed
	}
	if cfg.Regime.MaxIterations > 0 {
		rc.MaxIterations = cfg.Regime.MaxIterations
	}
	if cfg.Regime.Tolerance > 0 {
		rc.Tolerance = cfg.Regime.Tolerance
	}
	if cfg.Regime.Restarts > 0 {
		rc.Restarts = cfg.Regime.Restarts
	}
	if err := rc.Validate(); err != nil {
		return nil, fmt.Errorf("regime config: %w", err)
	}

	det := regime.NewDetector(rc)
	det.SetLogger(l)
	det.SetMetrics(m)
	return det, nil
}

// ProvideSimulator creates the strategy simulator when enabled.
func ProvideSimulator(cfg *config.Config, det *regime.Detector, l *applogger.Logger) domsvc.StrategySimulator {
	if !cfg.Strategy.Enabled {
		return nil
	}
	bc := backtest.DefaultConfig()
	if cfg.Strategy.TrainFraction > 0 {
		bc.TrainFrac = cfg.Strategy.TrainFraction
	}
	if len(cfg.Strategy.LongLabels) > 0 {
		bc.LongLabels = cfg.Strategy.LongLabels
	}
	sim := backtest.NewSimulator(bc, det)
	sim.SetLogger(l)
	return sim
}

// ProvideReporter creates the per-regime performance reporter.
func ProvideReporter() domsvc.Reporter {
	return report.NewReporter()
}

// ProvideResults creates the shared latest-run holder.
func ProvideResults() *usecase.Results {
	return usecase.NewResults()
}

// ProvideArtifactRouter creates the artifact router for the configured backend.
func ProvideArtifactRouter(store repository.ArtifactStore, pub repository.EventPublisher, m repository.Metrics, cfg *config.Config) *usecase.ArtifactRouter {
	return usecase.NewArtifactRouter(store, pub, m, repository.Backend(cfg.Artifacts.Backend))
}

// ProvideDetectUsecase creates the detection use case with its optional
// collaborators wired in.
func ProvideDetectUsecase(
	cfg *config.Config,
	bars repository.BarSource,
	store repository.BarStore,
	detector *regime.Detector,
	sim domsvc.StrategySimulator,
	reporter domsvc.Reporter,
	modelCache repository.ModelCache,
	router *usecase.ArtifactRouter,
	results *usecase.Results,
	m repository.Metrics,
	l *applogger.Logger,
) (*usecase.DetectUsecase, error) {
	params := usecase.DetectParams{
		Symbol:    cfg.Data.Symbol,
		VIXSymbol: cfg.Data.VIXSymbol,
		Window:    cfg.Features.Window,
	}
	if cfg.Data.From != "" {
		from, ok := util.ParseISODate(cfg.Data.From)
		if !ok {
			return nil, fmt.Errorf("data.from: invalid date %q", cfg.Data.From)
		}
		params.From = from
	}
	if cfg.Data.To != "" {
		to, ok := util.ParseISODate(cfg.Data.To)
		if !ok {
			return nil, fmt.Errorf("data.to: invalid date %q", cfg.Data.To)
		}
		params.To = to
	}

	uc := usecase.NewDetectUsecase(bars, detector, router, results, m, params)
	uc.SetLogger(l)
	if store != nil {
		uc.SetBarStore(store)
	}
	if modelCache != nil {
		uc.SetModelCache(modelCache)
	}
	if sim != nil {
		uc.SetSimulator(sim)
	}
	if reporter != nil {
		uc.SetReporter(reporter)
	}
	return uc, nil
}

// ProvideQueue creates the Redis-backed refit queue for serve mode. Without
// Redis the guard runs refits on its own worker.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, uc *usecase.DetectUsecase) *pkgqueue.RedisQueue {
	if cfg.Mode != "serve" || !cfg.Cache.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		l.Warn("redis queue unavailable, refits run in-process", applogger.Error(err))
		return nil
	}

	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, client, pkgqueue.ModeProducerConsumer)
	q.RegisterJobs([]pkgqueue.Job{
		usecase.NewDetectJob(uc),
		usecase.NewErrorDigestJob(l),
	})
	return q
}

// ProvideRunGuard creates the refit guard between the API and the detector.
func ProvideRunGuard(cfg *config.Config, uc *usecase.DetectUsecase, m repository.Metrics, q *pkgqueue.RedisQueue) *mid.RunGuard {
	var opts []mid.GuardOption
	if cfg.Runs.MinInterval > 0 {
		opts = append(opts, mid.WithMinInterval(cfg.Runs.MinInterval))
	}
	if cfg.Runs.MaxPending > 0 {
		opts = append(opts, mid.WithMaxPending(cfg.Runs.MaxPending))
	}
	if q != nil {
		opts = append(opts, mid.WithQueue(q))
	}
	return mid.NewRunGuard(uc, m, cfg.Data.Symbol, opts...)
}

// ProvideHandler creates the Echo API handler.
func ProvideHandler(cfg *config.Config, l *applogger.Logger, results *usecase.Results, guard *mid.RunGuard, chClient *pkgch.Client) *api.RegimesEchoHandler {
	h := api.NewRegimesEchoHandler(l, results, guard)
	h.SetCache(icache.NewTTLCache())
	if chClient != nil {
		h.AddHealthCheck("clickhouse", chClient.Health)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    l *applogger.Logger,
    uc *usecase.DetectUsecase,
    guard *mid.RunGuard,
    q *pkgqueue.RedisQueue,
    h *api.RegimesEchoHandler,
    chClient *pkgch.Client,
    router *usecase.ArtifactRouter,
) *server.App {
    app := server.New(cfg, l, uc, guard, chClient)
    app.SetHTTPHandler(h)
    if q != nil {
        app.SetQueue(q)
    }
    app.SetRouter(router)
    return app
}
