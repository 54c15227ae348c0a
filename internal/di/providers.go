package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"SearchInsight/internal/domain/repository"
	domsvc "SearchInsight/internal/domain/service"
	"SearchInsight/internal/handler/api"
	mid "SearchInsight/internal/middleware"
	internalrepo "SearchInsight/internal/repository"
	"SearchInsight/internal/service/ratelimit"
	"SearchInsight/internal/service/searchconsole"
	"SearchInsight/internal/services/benchmark"
	"SearchInsight/internal/services/intent"
	"SearchInsight/internal/services/opportunity"
	"SearchInsight/internal/services/recommend"
	"SearchInsight/internal/services/trend"
	"SearchInsight/internal/usecase"
	"SearchInsight/pkg/cache"
	pkgch "SearchInsight/pkg/clickhouse"
	"SearchInsight/pkg/config"
	xhttp "SearchInsight/pkg/http"
	pkgkafka "SearchInsight/pkg/kafka"
	applogger "SearchInsight/pkg/logger"
	"SearchInsight/pkg/metrics"
	"SearchInsight/pkg/queue"
	"SearchInsight/pkg/server"

	"github.com/redis/go-redis/v9"
)

var (
	_ domsvc.CTRBenchmark         = (*benchmark.Model)(nil)
	_ domsvc.TrendDetector        = (*trend.Detector)(nil)
	_ domsvc.IntentClassifier     = (*intent.Classifier)(nil)
	_ domsvc.OpportunityScorer    = (*opportunity.Scorer)(nil)
	_ domsvc.RecommendationEngine = (*recommend.Engine)(nil)

	_ repository.SearchAnalytics  = (*searchconsole.Client)(nil)
	_ repository.PerformanceStore = (*internalrepo.CHPerformanceStore)(nil)
	_ repository.Publisher        = (*internalrepo.KafkaPublisher)(nil)
)

// ProvideLogger creates the application logger from the log section.
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
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache builds the Search Console response cache selected by cache.type.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	rc := cfg.Cache.Redis
	svc, err := cache.New(cache.Options{
		Type:          cfg.Cache.Type,
		MemoryMaxSize: cfg.Cache.MemoryMaxSize,
		MemoryTTL:     cfg.Cache.MemoryTTL,
		Redis: []cache.RedisOption{
			cache.WithRedisHost(rc.Host),
			cache.WithRedisPort(rc.Port),
			cache.WithRedisPassword(rc.Password),
			cache.WithRedisDB(rc.DB),
			cache.WithRedisPool(rc.PoolSize, 2, 5*time.Second),
			cache.WithRedisPrefix(rc.Prefix),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return svc, nil
}

// ProvideRateLimiter creates the limiter shared by the upstream client and
// the API. Keys never overlap.
func ProvideRateLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideSearchConsoleHTTPClient resolves Google credentials. Without any,
// the service still starts and upstream calls fail with ErrNoCredentials.
func ProvideSearchConsoleHTTPClient(cfg *config.Config, l *applogger.Logger) (*http.Client, error) {
	hc, err := searchconsole.NewCredentialSource(cfg.SearchConsole.CredentialsFile).HTTPClient(context.Background())
	if errors.Is(err, searchconsole.ErrNoCredentials) {
		l.Warn("search console credentials not found, upstream calls disabled", applogger.Error(err))
		return searchconsole.FailingClient(err), nil
	}
	if err != nil {
		return nil, fmt.Errorf("search console credentials: %w", err)
	}
	return hc, nil
}

// ProvideSearchAnalytics creates the Search Console client.
func ProvideSearchAnalytics(
	cfg *config.Config,
	hc *http.Client,
	limiter *ratelimit.Limiter,
	store cache.Service,
	rec repository.Metrics,
	l *applogger.Logger,
) *searchconsole.Client {
	sc := cfg.SearchConsole
	return searchconsole.New(searchconsole.Config{
		BaseURL:       sc.BaseURL,
		Timeout:       sc.Timeout,
		MaxRetries:    sc.MaxRetries,
		RowLimit:      sc.RowLimit,
		SearchType:    sc.SearchType,
		CacheTTL:      sc.CacheTTL,
		RateCapacity:  cfg.RateLimit.UpstreamCapacity,
		RatePerSecond: cfg.RateLimit.UpstreamPerSecond,
	}, hc, limiter, store, rec, l)
}

// ProvideClickHouseClient connects to ClickHouse. It returns nil when
// ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	if !ch.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), ch.DialTimeout+5*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePerformanceStore creates the ClickHouse store and its schema, or
// returns nil without ClickHouse.
func ProvidePerformanceStore(client *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.PerformanceStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewCHPerformanceStore(client.DB(), cfg.ClickHouse.Database)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil without brokers.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	k := cfg.Kafka
	if len(k.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatching(k.Producer.BatchSize, k.Producer.BatchBytes, k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher wraps the producer, or returns nil without one.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic, cfg.Kafka.ReportTopic, cfg.Backend.BatchSize)
}

// ProvideEngine assembles the analysis components.
func ProvideEngine() usecase.Engine {
	return usecase.Engine{
		CTR:     benchmark.NewModel(),
		Trends:  trend.NewDetector(),
		Intents: intent.NewClassifier(),
		Scorer:  opportunity.NewScorer(),
		Recs:    recommend.NewEngine(),
	}
}

// ProvideInsightService creates the insight use case.
func ProvideInsightService(
	source *searchconsole.Client,
	store repository.PerformanceStore,
	pub repository.Publisher,
	rec repository.Metrics,
	engine usecase.Engine,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.InsightService {
	return usecase.NewInsightService(source, store, pub, rec, engine, usecase.InsightConfig{
		LookbackDays: cfg.Analysis.LookbackDays,
		LagDays:      cfg.Analysis.LagDays,
		TrendKeys:    cfg.Analysis.TrendKeys,
		Workers:      cfg.Analysis.Workers,
		Timeout:      cfg.Server.WriteTimeout,
	}, l)
}

// ProvideSnapshotProcessor creates the backend router for snapshots.
func ProvideSnapshotProcessor(
	pub repository.Publisher,
	store repository.PerformanceStore,
	rec repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.SnapshotProcessor {
	return usecase.NewSnapshotProcessor(pub, store, rec, cfg.Backend.Type, l)
}

// ProvideSnapshotPipeline places the buffering pipeline in front of the processor.
func ProvideSnapshotPipeline(proc *usecase.SnapshotProcessor, rec repository.Metrics) *mid.SnapshotPipeline {
	return mid.NewSnapshotPipeline(proc, rec,
		mid.WithBufferSize(256),
		mid.WithMaxBackoff(time.Minute),
	)
}

// ProvideJobQueue creates the Redis job queue used by queue dispatch, or
// nil when the collector collects inline.
func ProvideJobQueue(cfg *config.Config, l *applogger.Logger) *queue.RedisQueue {
	cc := cfg.Collector
	if !cc.Enabled || cc.Dispatch != "queue" {
		return nil
	}
	rc := cfg.Cache.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Host + ":" + strconv.Itoa(rc.Port),
		Password: rc.Password,
		DB:       rc.DB,
		PoolSize: rc.PoolSize,
	})
	return queue.NewRedisQueue(l, queue.Config{
		Workers:    cc.Queue.Workers,
		RetryLimit: cc.Queue.RetryLimit,
		RetryDelay: cc.Queue.RetryDelay,
	}, client, queue.ModeProducerConsumer, queue.WithKeyPrefix(cc.Queue.Prefix))
}

// ProvideSnapshotCollector creates the periodic collector, or nil when it
// is disabled. With a job queue the collect_site job is registered here.
func ProvideSnapshotCollector(
	source *searchconsole.Client,
	pipe *mid.SnapshotPipeline,
	jobs *queue.RedisQueue,
	rec repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.SnapshotCollector {
	if !cfg.Collector.Enabled {
		return nil
	}
	var pub queue.Publisher
	if jobs != nil {
		pub = jobs
	}
	c := usecase.NewSnapshotCollector(source, pipe, pub, rec, usecase.CollectorConfig{
		Sites:    cfg.SearchConsole.Sites,
		Interval: cfg.Collector.Interval,
		LagDays:  cfg.Collector.LagDays,
	}, l)
	if jobs != nil {
		jobs.RegisterJob(usecase.NewCollectSiteJob(c))
	}
	return c
}

// ProvideInsightsHandler creates the API handler and its health checks.
func ProvideInsightsHandler(
	svc *usecase.InsightService,
	limiter *ratelimit.Limiter,
	store repository.PerformanceStore,
	cacheSvc cache.Service,
	cfg *config.Config,
	l *applogger.Logger,
) *api.InsightsHandler {
	h := api.NewInsightsHandler(l, svc, limiter, api.RateLimit{
		Capacity:  cfg.RateLimit.APICapacity,
		PerSecond: cfg.RateLimit.APIPerSecond,
	})
	if store != nil {
		h.AddHealthCheck("clickhouse", store.Health)
	}
	if cfg.Cache.Type != "memory" {
		h.AddHealthCheck("cache", func(ctx context.Context) error {
			_, err := cacheSvc.Exists(ctx, "healthz")
			return err
		})
	}
	return h
}

// ProvideHTTPServer creates the Echo server with every handler registered.
func ProvideHTTPServer(h *api.InsightsHandler, cfg *config.Config, l *applogger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(!cfg.Server.DisableCORS),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	collector *usecase.SnapshotCollector,
	pipe *mid.SnapshotPipeline,
	jobs *queue.RedisQueue,
	proc *usecase.SnapshotProcessor,
	chClient *pkgch.Client,
	cacheSvc cache.Service,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:      srv,
		Collector: collector,
		Pipeline:  pipe,
		Jobs:      jobs,
		Processor: proc,
		Closers:   closers(chClient, cacheSvc),
	})
}

func closers(chClient *pkgch.Client, cacheSvc cache.Service) []server.Closer {
	var out []server.Closer
	if cacheSvc != nil {
		out = append(out, server.Closer{Name: "cache", Close: cacheSvc.Close})
	}
	if chClient != nil {
		out = append(out, server.Closer{Name: "clickhouse", Close: chClient.Close})
	}
	return out
}
