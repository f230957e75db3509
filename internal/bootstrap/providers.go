package bootstrap

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/adapters/config"
	errnoop "crimewatch/internal/adapters/errors/noop"
	"crimewatch/internal/adapters/errors/sentry"
	"crimewatch/internal/adapters/kafka"
	pgclient "crimewatch/internal/adapters/postgres"
	redisclient "crimewatch/internal/adapters/redis"
	"crimewatch/internal/api"
	"crimewatch/internal/api/health"
	"crimewatch/internal/artifact"
	"crimewatch/internal/consumers"
	"crimewatch/internal/dataset"
	"crimewatch/internal/metrics"
	"crimewatch/internal/ml"
	chrepo "crimewatch/internal/repository/clickhouse"
	pgrepo "crimewatch/internal/repository/postgres"
	"crimewatch/internal/services/alerts"
	"crimewatch/internal/services/analytics"
	"crimewatch/internal/services/prediction"
	"crimewatch/internal/services/reporting"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

const (
	connectTimeout   = 15 * time.Second
	auditBatchSize   = 500
	auditFlushMaxAge = 5 * time.Second
)

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// MustInitConfig loads configuration and initializes logger
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.RequireServer(); err != nil {
		panic("invalid server config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = ProvideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// MustInitInfrastructure connects Postgres (required), ClickHouse and Redis (optional)
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, connectTimeout)
	defer cancel()

	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
	if err != nil {
		c.Log.Fatalf("failed to connect postgres: %v", err)
	}
	if err := pgrepo.Migrate(ctx, c.PG.DB()); err != nil {
		c.Log.Fatalf("failed to migrate postgres: %v", err)
	}
	c.Log.Info("✓ PostgreSQL connected")

	if c.Config.ClickHouse.Enabled() {
		c.Log.Info("Connecting to ClickHouse...")
		c.CH, err = chclient.NewClient(ctx, c.Config.ClickHouse)
		if err != nil {
			c.Log.Fatalf("failed to connect clickhouse: %v", err)
		}
		if err := chrepo.Migrate(ctx, c.CH.Conn()); err != nil {
			c.Log.Fatalf("failed to migrate clickhouse: %v", err)
		}
		c.Log.Info("✓ ClickHouse connected")
	} else {
		c.Log.Info("ClickHouse not configured, prediction audit disabled")
	}

	c.Redis, err = ProvideRedis(ctx, c.Config, c.Log)
	if err != nil {
		c.Log.Fatalf("failed to connect redis: %v", err)
	}
}

// ========================================
// Phase 3: Repositories
// ========================================

// MustInitRepositories initializes all domain repositories
func (c *Container) MustInitRepositories() {
	db := c.PG.DB()
	c.Repos.Reports = pgrepo.NewReportRepository(db)
	c.Repos.Subscribers = pgrepo.NewSubscriberRepository(db)

	if c.CH != nil {
		c.Repos.PredictionLog = chrepo.NewPredictionLogRepository(c.CH.Conn())
	}

	prometheus.MustRegister(metrics.NewStoreCollector(c.Log, db))
}

// ========================================
// Phase 4: External Adapters
// ========================================

// MustInitAdapters initializes the artifact store and Kafka
func (c *Container) MustInitAdapters() {
	store, err := ProvideArtifactStore(c.Config, c.Redis)
	if err != nil {
		c.Log.Fatalf("failed to init artifact store: %v", err)
	}
	c.Adapters.ArtifactStore = store

	if c.Config.Kafka.Enabled() {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: c.Config.Kafka.Brokers,
		})
		c.Adapters.AlertConsumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: c.Config.Kafka.Brokers,
			GroupID: c.Config.Kafka.GroupID + "-alerts",
			Topic:   kafka.TopicReportSubmitted,
		})
		c.Log.Infow("✓ Kafka configured", "brokers", c.Config.Kafka.Brokers)
	}
}

// ========================================
// Phase 5: Services
// ========================================

// MustInitServices wires the application services
func (c *Container) MustInitServices() {
	c.Services.Bundles = prediction.NewBundleCache(c.Adapters.ArtifactStore, c.Log)

	var recorder prediction.Recorder
	if c.Repos.PredictionLog != nil {
		c.Services.Audit = prediction.NewAuditRecorder(c.Repos.PredictionLog, auditBatchSize, auditFlushMaxAge, c.Log)
		recorder = c.Services.Audit
	}
	c.Services.Prediction = prediction.NewService(c.Services.Bundles, recorder, c.Log)

	c.Services.Alerts = alerts.NewService(
		c.Repos.Subscribers,
		c.Repos.Reports,
		alerts.NewLogNotifier(c.Log),
		c.Config.Alerts.DefaultRegion,
		c.Log,
	)

	// Without Kafka, report events go straight to the alerts service
	var publisher reporting.EventPublisher
	if c.Adapters.KafkaProducer != nil {
		publisher = c.Adapters.KafkaProducer
	} else {
		publisher = alerts.NewDirectPublisher(c.Services.Alerts, c.Log)
	}
	c.Services.Reporting = reporting.NewService(c.Repos.Reports, publisher, c.Log)

	records, _, err := dataset.Load(c.Config.Dataset.Path)
	if err != nil {
		c.Log.Warnw("Crime dataset unavailable, analytics routes will return 503", "path", c.Config.Dataset.Path, "error", err)
		return
	}
	c.Services.Analytics = analytics.NewService(records, c.Log)
}

// ========================================
// Phase 6: Application Layer
// ========================================

// MustInitApplication builds the HTTP server
func (c *Container) MustInitApplication() {
	checks := map[string]health.Checker{
		"postgres": c.PG,
		"model": health.CheckerFunc(func(ctx context.Context) error {
			_, err := c.Services.Bundles.Get(ctx)
			return err
		}),
	}
	if c.CH != nil {
		checks["clickhouse"] = c.CH
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.Application.HealthHandler = health.New(c.Log, checks, c.Config.App.Name, c.Config.App.Version)

	var an api.Analytics
	if c.Services.Analytics != nil {
		an = c.Services.Analytics
	}
	handlers := api.NewHandlers(c.Services.Prediction, c.Services.Reporting, c.Services.Alerts, an, c.Log)

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:           c.Config.HTTP.Port,
		ServiceName:    c.Config.App.Name,
		Version:        c.Config.App.Version,
		ReadTimeout:    c.Config.HTTP.ReadTimeout,
		WriteTimeout:   c.Config.HTTP.WriteTimeout,
		RateLimitRPS:   c.Config.HTTP.RateLimitRPS,
		RateLimitBurst: c.Config.HTTP.RateLimitBurst,
	}, handlers, c.Application.HealthHandler, c.Log)
}

// ========================================
// Phase 7: Background Processing
// ========================================

// MustInitBackground wires the Kafka consumers
func (c *Container) MustInitBackground() {
	if c.Adapters.AlertConsumer != nil {
		c.Background.AlertConsumer = consumers.NewAlertConsumer(c.Adapters.AlertConsumer, c.Services.Alerts, c.Log)
	}
}

// ========================================
// Shared providers (server and trainer)
// ========================================

// ProvideErrorTracker returns Sentry when configured, otherwise a no-op tracker
func ProvideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnw("Failed to init Sentry, falling back to no-op tracker", "error", err)
		return errnoop.New()
	}
	log.Info("✓ Sentry error tracking enabled")
	return tracker
}

// ProvideRedis connects to Redis when configured; nil otherwise
func ProvideRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redisclient.Client, error) {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured")
		return nil, nil
	}
	log.Info("Connecting to Redis...")
	client, err := redisclient.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	log.Info("✓ Redis connected")
	return client, nil
}

// ProvideArtifactStore selects the bundle store named by ARTIFACT_BACKEND
func ProvideArtifactStore(cfg *config.Config, rdb *redisclient.Client) (artifact.Store, error) {
	codec := artifact.Codec{ONNX: ml.DefaultONNXOptions()}
	codec.ONNX.LibraryPath = cfg.ONNX.LibraryPath

	switch cfg.Artifacts.Backend {
	case "redis":
		if rdb == nil {
			return nil, errors.NewValidationError("REDIS_HOST", "required when ARTIFACT_BACKEND=redis", "")
		}
		return artifact.NewRedisStore(rdb.Client(), cfg.Artifacts.RedisPrefix, codec), nil
	case "file", "":
		return artifact.NewFileStore(cfg.Artifacts.Dir, codec), nil
	default:
		return nil, errors.NewValidationError("ARTIFACT_BACKEND", "must be file or redis", cfg.Artifacts.Backend)
	}
}
