package di

import (
	"context"
	"fmt"
	"time"

	"DemandCast/internal/domain/repository"
	"DemandCast/internal/handler/api"
	"DemandCast/internal/handler/ws"
	internalrepo "DemandCast/internal/repository"
	"DemandCast/internal/service/ratelimit"
	"DemandCast/internal/services/ensemble"
	"DemandCast/internal/services/features"
	"DemandCast/internal/services/forecast"
	"DemandCast/internal/usecase"
	"DemandCast/pkg/cache"
	pkgch "DemandCast/pkg/clickhouse"
	"DemandCast/pkg/config"
	xhttp "DemandCast/pkg/http"
	pkgkafka "DemandCast/pkg/kafka"
	applogger "DemandCast/pkg/logger"
	"DemandCast/pkg/metrics"
	"DemandCast/pkg/otel"
	"DemandCast/pkg/queue"
	"DemandCast/pkg/server"

	"github.com/jackc/pgx/v5/pgxpool"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const initTimeout = 10 * time.Second

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: "demandcast",
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTracer installs the OTLP exporter when tracing is enabled.
func ProvideTracer(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if !cfg.Tracing.Enabled {
		return nil, nil
	}
	oc := otel.DefaultConfig(cfg.Tracing.ServiceName)
	oc.Environment = cfg.Environment
	oc.CollectorEndpoint = cfg.Tracing.Endpoint
	oc.SamplingRate = cfg.Tracing.SamplingRate

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	tp, err := otel.InitTracer(ctx, oc)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	return tp, nil
}

// ProvideRedisCache connects to Redis, or returns nil when it is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, 30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache layers a process-local LRU over Redis. Without Redis the
// local cache serves alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Redis.L1Size),
			cache.WithMemoryTTL(cfg.Redis.CacheTTL),
		)
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Redis.L1Size),
		cache.WithLayeredMemoryTTL(time.Minute),
	)
}

// ProvideStorage opens the configured backend, prepares its schema and
// fronts latest-run lookups with the cache.
func ProvideStorage(cfg *config.Config, c cache.Service, l *applogger.Logger) (repository.Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	var store repository.Storage
	switch cfg.Storage.Driver {
	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.Storage.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres config: %w", err)
		}
		pc.MaxConns = cfg.Storage.Postgres.MaxConns
		pc.MinConns = cfg.Storage.Postgres.MinConns
		pc.MaxConnLifetime = cfg.Storage.Postgres.ConnMaxLifetime
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		store = internalrepo.NewPostgresStore(pool, l, cfg.Storage.Postgres.Migrate)
	case "clickhouse":
		chc := cfg.Storage.ClickHouse
		client, err := pkgch.NewClient(ctx,
			pkgch.WithHost(chc.Host),
			pkgch.WithPort(chc.Port),
			pkgch.WithDatabase(chc.Database),
			pkgch.WithCredentials(chc.User, chc.Password),
			pkgch.WithMaxConnections(chc.MaxOpenConns, chc.MaxOpenConns/2),
			pkgch.WithHTTP(chc.UseHTTP),
			pkgch.WithCompression(chc.Compress),
			pkgch.WithAsyncInsert(chc.AsyncInsert, chc.WaitForAsync),
			pkgch.WithTimeouts(chc.DialTimeout, chc.ReadTimeout),
			pkgch.WithMaxExecutionTime(chc.MaxExecutionTime),
		)
		if err != nil {
			return nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewCHStore(client, chc.Database, l)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return internalrepo.NewCachedStore(store, c, cfg.Redis.CacheTTL, l), nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
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
	l.Info("kafka producer ready",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.Strings("topics", []string{cfg.Kafka.RunsTopic, cfg.Kafka.AlertsTopic}))
	return producer, nil
}

func ProvideHub(l *applogger.Logger) *ws.Hub {
	return ws.NewHub(l.With(applogger.String("component", "ws")))
}

// ProvideNotifier fans events out to the websocket hub and, when
// configured, the alert webhook and Kafka.
func ProvideNotifier(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer, l *applogger.Logger) repository.Notifier {
	sinks := internalrepo.MultiNotifier{hub}
	if cfg.Alerts.WebhookURL != "" {
		b := cfg.Alerts.Breaker
		opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Alerts.Timeout), xhttp.WithUserAgent("demandcast")}
		if cfg.Alerts.WebhookToken != "" {
			opts = append(opts, xhttp.WithHeader("X-Webhook-Token", cfg.Alerts.WebhookToken))
		}
		sinks = append(sinks, internalrepo.NewWebhookNotifier(
			xhttp.NewClient(opts...),
			cfg.Alerts.WebhookURL,
			internalrepo.BreakerConfig{
				MaxRequests:      b.MaxRequests,
				Interval:         b.Interval,
				Timeout:          b.Timeout,
				FailureThreshold: b.FailureThreshold,
			},
			l,
		))
	}
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaNotifier(producer, cfg.Kafka.RunsTopic, cfg.Kafka.AlertsTopic))
	}
	return sinks
}

// ProvidePipeline builds the forecasting pipeline from the forecast section.
func ProvidePipeline(cfg *config.Config) (*forecast.Pipeline, error) {
	fc := cfg.Forecast
	loc, err := features.LocaleByName(fc.Locale)
	if err != nil {
		return nil, err
	}
	extra := make([]features.MonthDay, 0, len(fc.ExtraHolidays))
	for _, s := range fc.ExtraHolidays {
		md, err := features.ParseMonthDay(s)
		if err != nil {
			return nil, fmt.Errorf("forecast.extra_holidays: %w", err)
		}
		extra = append(extra, md)
	}
	policy, err := forecast.ParseBandPolicy(fc.BandPolicy)
	if err != nil {
		return nil, err
	}

	return forecast.NewPipeline(features.NewBuilder(loc.WithHolidays(extra...)), forecast.Config{
		MinDays:         fc.MinDays,
		FallbackMinDays: fc.FallbackMinDays,
		EnsembleEnabled: fc.EnsembleEnabled,
		BandPolicy:      policy,
		TopFeatures:     fc.TopFeatures,
		TrainFraction:   fc.TrainFraction,
		Ensemble: ensemble.Options{
			Boosting: ensemble.BoostingParams{
				Rounds:         fc.Boosting.Rounds,
				LearningRate:   fc.Boosting.LearningRate,
				MaxDepth:       fc.Boosting.MaxDepth,
				MinSamplesLeaf: fc.Boosting.MinSamplesLeaf,
			},
			Forest: ensemble.ForestParams{
				Trees:          fc.Forest.Trees,
				MaxDepth:       fc.Forest.MaxDepth,
				MinSamplesLeaf: fc.Forest.MinSamplesLeaf,
				Seed:           fc.Forest.Seed,
			},
			ValidationFraction: fc.ValidationFraction,
		},
	}), nil
}

// ProvideQueue returns a Redis-backed queue when Redis is available and an
// in-process one otherwise. It is nil when queueing is disabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) queue.Server {
	if !cfg.Queue.Enabled {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	ql := l.With(applogger.String("component", "queue"))
	if rc == nil {
		return queue.NewLocalQueue(ql, qc)
	}
	return queue.NewRedisQueue(ql, qc, rc.Client(),
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
}

func ProvideForecastService(
	cfg *config.Config,
	store repository.Storage,
	pipeline *forecast.Pipeline,
	notifier repository.Notifier,
	m repository.Metrics,
	q queue.Server,
	l *applogger.Logger,
) *usecase.ForecastService {
	opts := []usecase.ServiceOption{usecase.WithMaxHorizon(cfg.Forecast.MaxHorizon)}
	if q != nil {
		opts = append(opts, usecase.WithQueue(q))
	}
	return usecase.NewForecastService(store, store, pipeline, notifier, m, l, opts...)
}

// ProvideForecastJob locks through the shared cache so that, with Redis,
// the lock holds across instances.
func ProvideForecastJob(cfg *config.Config, svc *usecase.ForecastService, c cache.Service, l *applogger.Logger) *usecase.ForecastJob {
	return usecase.NewForecastJob(svc, c, cfg.Queue.LockTTL, l)
}

func ProvideScheduler(cfg *config.Config, store repository.Storage, svc *usecase.ForecastService, l *applogger.Logger) *usecase.ForecastScheduler {
	if !cfg.Scheduler.Enabled {
		return nil
	}
	return usecase.NewForecastScheduler(store, svc, cfg.Scheduler.Interval, cfg.Scheduler.Horizon,
		l.With(applogger.String("component", "scheduler")))
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.RunRateLimit, cfg.Server.RunBurst, 4096, 10*time.Minute)
}

// ProvideHTTPServer registers the API and websocket handlers on an Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.ForecastService,
	limiter *ratelimit.Limiter,
	store repository.Storage,
	rc *cache.RedisCache,
	hub *ws.Hub,
) *xhttp.Server {
	checks := []api.HealthCheck{{Name: "store", Check: store.Health}}
	if rc != nil {
		checks = append(checks, api.HealthCheck{Name: "redis", Check: rc.Ping})
	}

	metricsPath := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		metricsPath = ""
	}

	handlers := []xhttp.Handler{
		api.NewForecastEchoHandler(l, svc, limiter, cfg.Forecast.DefaultHorizon, checks...),
		ws.NewHandler(hub, l),
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.AllowOrigins...),
		xhttp.WithBodyLimit(cfg.Server.BodyLimit),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	hub *ws.Hub,
	q queue.Server,
	job *usecase.ForecastJob,
	scheduler *usecase.ForecastScheduler,
	tp *sdktrace.TracerProvider,
	store repository.Storage,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
) *server.App {
	opts := []server.AppOption{
		server.WithHub(hub),
		server.WithTracer(tp),
	}
	if q != nil {
		q.RegisterJob(job)
		opts = append(opts, server.WithQueue(q))
	}
	if scheduler != nil {
		opts = append(opts, server.WithScheduler(scheduler))
	}

	// closed in reverse: kafka, store, then redis which the queue shares
	if rc != nil {
		opts = append(opts, server.WithCloser("redis", rc.Close))
	}
	opts = append(opts, server.WithCloser("store", store.Close))
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka", producer.Close))
	}
	return server.New(cfg, l, srv, opts...)
}
