package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	analyticsapp "github.com/erp/analytics/internal/application/analytics"
	"github.com/erp/analytics/internal/infrastructure/auth"
	"github.com/erp/analytics/internal/infrastructure/cache"
	"github.com/erp/analytics/internal/infrastructure/config"
	"github.com/erp/analytics/internal/infrastructure/logger"
	"github.com/erp/analytics/internal/infrastructure/persistence"
	"github.com/erp/analytics/internal/infrastructure/scheduler"
	"github.com/erp/analytics/internal/infrastructure/telemetry"
	"github.com/erp/analytics/internal/interfaces/http/handler"
	"github.com/erp/analytics/internal/interfaces/http/middleware"
	"github.com/erp/analytics/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Sales Analytics API
//	@version		1.0
//	@description	Daily sales aggregates, preset windows and cache-aside analytics queries
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()

	// The OTLP log bridge has to exist before the logger that tees into it
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	})
	if err != nil {
		panic("Failed to initialize log exporter: " + err.Error())
	}

	var extraCores []zapcore.Core
	if logsProvider.IsEnabled() {
		extraCores = append(extraCores,
			telemetry.NewZapOTELCore(logsProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	}
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sales analytics service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	meter := meterProvider.Meter("sales-analytics")
	metrics, err := telemetry.NewAnalyticsMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create analytics metrics", zap.Error(err))
	}

	// Transactional source
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.OpenDatabase(ctx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Aggregate store
	mongoStore, err := persistence.NewMongoStore(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoStore.Close(closeCtx); err != nil {
			log.Error("Error closing MongoDB client", zap.Error(err))
		}
	}()
	aggregateRepo := persistence.NewMongoAggregateRepository(mongoStore.Aggregates())
	if err := aggregateRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal("Failed to create aggregate indexes", zap.Error(err))
	}
	catalogRepo := persistence.NewMongoProductCatalogRepository(mongoStore.Catalog())
	log.Info("MongoDB connected successfully", zap.String("database", cfg.Mongo.Database))

	// Cache store
	cacheStore, err := cache.NewFactory(cfg.Redis, cfg.Cache, cache.WithLogger(log)).CreateStore()
	if err != nil {
		log.Fatal("Failed to create cache", zap.Error(err))
	}
	defer func() {
		if err := cacheStore.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()
	analyticsCache := cache.NewFailOpenCache(cacheStore, log, metrics)

	// Analytics pipeline
	salesSource := persistence.NewGormSalesSource(db.DB)
	presets := analyticsapp.NewPresetMaterializer(aggregateRepo, analyticsCache, cfg.Analytics.PresetTTL, log,
		analyticsapp.WithMetrics(metrics))
	job := analyticsapp.NewAggregationJob(salesSource, aggregateRepo, analyticsCache, presets, log,
		analyticsapp.WithMetrics(metrics),
		analyticsapp.WithJobTimeout(cfg.Analytics.JobTimeout))
	queryService := analyticsapp.NewQueryService(salesSource, aggregateRepo, catalogRepo, analyticsCache, job,
		analyticsapp.QueryTTLs{
			Overview:    cfg.Analytics.OverviewTTL,
			Trend:       cfg.Analytics.TrendTTL,
			TopProducts: cfg.Analytics.TopProductsTTL,
		}, log)

	dailyScheduler, err := scheduler.NewDailyAggregationScheduler(scheduler.DailyAggregationSchedulerConfig{
		Enabled:           cfg.Scheduler.Enabled,
		DailyCronSchedule: cfg.Scheduler.DailyCronSchedule,
		JobTimeout:        cfg.Scheduler.JobTimeout,
	}, job, log)
	if err != nil {
		log.Fatal("Failed to create aggregation scheduler", zap.Error(err))
	}
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	if err := dailyScheduler.Start(schedulerCtx); err != nil {
		log.Fatal("Failed to start aggregation scheduler", zap.Error(err))
	}
	log.Info("Aggregation scheduler configured",
		zap.Bool("enabled", cfg.Scheduler.Enabled),
		zap.String("schedule", cfg.Scheduler.DailyCronSchedule),
		zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
	)

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to set up request validator", zap.Error(err))
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			Enabled:        tracerProvider.IsEnabled(),
			TracerProvider: otel.GetTracerProvider(),
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(),
	)
	if meterProvider.IsEnabled() {
		engine.Use(middleware.HTTPMetrics(meter, log))
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	analyticsHandler := handler.NewAnalyticsHandler(queryService, clockwork.NewRealClock(),
		handler.WithTriggerTimeout(cfg.Analytics.JobTimeout))
	healthHandler := handler.NewHealthHandler(2*time.Second, clockwork.NewRealClock(),
		handler.HealthCheck{Name: "database", Ping: db.Ping},
		handler.HealthCheck{Name: "mongo", Ping: mongoStore.Ping},
		handler.HealthCheck{Name: "cache", Ping: cacheStore.Ping},
	)

	r := router.NewRouter(engine, router.WithHealthHandler(healthHandler.Health))
	r.Register(router.AnalyticsRoutes(analyticsHandler, router.AnalyticsRoutesConfig{
		JWTService: jwtService,
		TriggerLimiter: middleware.NewRateLimiter(
			cfg.Analytics.TriggerRateLimit, cfg.Analytics.TriggerRateWindow, nil),
		Logger: log,
	}))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := dailyScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Aggregation scheduler did not stop cleanly", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down log provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
