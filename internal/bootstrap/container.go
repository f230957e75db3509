package bootstrap

import (
	"context"
	"sync"

	chclient "crimewatch/internal/adapters/clickhouse"
	"crimewatch/internal/adapters/config"
	"crimewatch/internal/adapters/kafka"
	pgclient "crimewatch/internal/adapters/postgres"
	redisclient "crimewatch/internal/adapters/redis"
	"crimewatch/internal/api"
	"crimewatch/internal/api/health"
	"crimewatch/internal/artifact"
	"crimewatch/internal/consumers"
	"crimewatch/internal/domain/report"
	"crimewatch/internal/domain/subscriber"
	chrepo "crimewatch/internal/repository/clickhouse"
	"crimewatch/internal/services/alerts"
	"crimewatch/internal/services/analytics"
	"crimewatch/internal/services/prediction"
	"crimewatch/internal/services/reporting"
	"crimewatch/pkg/errors"
	"crimewatch/pkg/logger"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores). CH and Redis are optional.
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	Reports       report.Repository
	Subscribers   subscriber.Repository
	PredictionLog *chrepo.PredictionLogRepository // nil without ClickHouse
}

// Adapters groups all external adapters
type Adapters struct {
	ArtifactStore artifact.Store
	KafkaProducer *kafka.Producer // nil without Kafka
	AlertConsumer *kafka.Consumer // nil without Kafka
}

// Services groups the application services
type Services struct {
	Prediction *prediction.Service
	Bundles    *prediction.BundleCache
	Audit      *prediction.AuditRecorder // nil without ClickHouse
	Reporting  *reporting.Service
	Alerts     *alerts.Service
	Analytics  *analytics.Service // nil when the dataset failed to load
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	AlertConsumer *consumers.AlertConsumer // nil without Kafka
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order
// Panics on any initialization error (fail-fast at startup)
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts all background components
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Services.Audit != nil {
		c.Services.Audit.Start(c.Context)
	}

	// Warm the model cache; a missing bundle only degrades /api/prediction
	if _, err := c.Services.Bundles.Get(c.Context); err != nil {
		c.Log.Warnw("Model bundle not loaded at startup, predictions will return 503 until one is published", "error", err)
	}

	c.startConsumers()

	// Start HTTP server
	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("✓ All systems operational")
	return nil
}

// startConsumers starts Kafka consumers in background goroutines
func (c *Container) startConsumers() {
	if c.Background.AlertConsumer == nil {
		c.Log.Info("Kafka not configured, alerts are dispatched in-process")
		return
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Background.AlertConsumer.Start(c.Context); err != nil && c.Context.Err() == nil {
			c.Log.Errorw("Alert consumer failed", "error", err)
		}
	}()
	c.Log.Infow("✓ Event consumers started", "consumers", []string{"alerts"})
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")

	// Cancel application context to signal all other components to stop
	c.Cancel()

	c.Lifecycle.Shutdown(c.WG, ShutdownTargets{
		HTTPServer:    c.Application.HTTPServer,
		HTTPTimeout:   c.Config.HTTP.ShutdownTimeout,
		AlertConsumer: c.Adapters.AlertConsumer,
		KafkaProducer: c.Adapters.KafkaProducer,
		Audit:         c.Services.Audit,
		PG:            c.PG,
		CH:            c.CH,
		Redis:         c.Redis,
		ErrorTracker:  c.ErrorTracker,
	}, c.Log)
}
