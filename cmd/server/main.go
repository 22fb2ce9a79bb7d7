package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	eventapp "github.com/marketplace/payouts/internal/application/event"
	financeapp "github.com/marketplace/payouts/internal/application/finance"
	partnerapp "github.com/marketplace/payouts/internal/application/partner"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/infrastructure/cache"
	"github.com/marketplace/payouts/internal/infrastructure/config"
	"github.com/marketplace/payouts/internal/infrastructure/event"
	"github.com/marketplace/payouts/internal/infrastructure/logger"
	"github.com/marketplace/payouts/internal/infrastructure/migration"
	"github.com/marketplace/payouts/internal/infrastructure/notification"
	"github.com/marketplace/payouts/internal/infrastructure/payoutexec"
	"github.com/marketplace/payouts/internal/infrastructure/persistence"
	"github.com/marketplace/payouts/internal/infrastructure/scheduler"
	"github.com/marketplace/payouts/internal/infrastructure/storage"
	"github.com/marketplace/payouts/internal/infrastructure/telemetry"
	"github.com/marketplace/payouts/internal/interfaces/http/handler"
	"github.com/marketplace/payouts/internal/interfaces/http/middleware"
	"github.com/marketplace/payouts/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	baseLog, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Fields:     map[string]string{"service": cfg.App.Name, "env": cfg.App.Env},
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := baseLog
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting payout service",
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	// Telemetry: traces, metrics, log export and profiles
	tel, err := telemetry.Setup(rootCtx, telemetry.Config{
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		Traces:            cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		Logs:              cfg.Telemetry.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	// Already validated by logger.New
	level, _ := logger.ParseLevel(cfg.Log.Level)
	log = tel.BridgeLogger(baseLog, level)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.App.Name,
		BasicAuthUser:     cfg.Profiling.AuthUser,
		BasicAuthPassword: cfg.Profiling.AuthPassword,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tel.EnableSpanProfiles()
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
		if err := tel.Shutdown(ctx); err != nil {
			log.Error("Error flushing telemetry", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.Open(rootCtx, &cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	sqlDB := db.SQL()
	if cfg.Database.AutoMigrate {
		migrator, err := migration.New(sqlDB, log)
		if err != nil {
			log.Fatal("Failed to create migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
		// Closing the migrator would close the shared sql.DB
	}

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, tel, telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Warn("Database metrics disabled", zap.Error(err))
	} else if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Redis is optional: idempotency and rate limits fall back to memory
	redisClient, err := cache.NewRedisClient(context.Background(), cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, using in-memory stores", zap.Error(err))
	} else if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}

	// Repositories and the transactional outbox
	vendorRepo := persistence.NewGormVendorRepository(db.DB)
	entryRepo := persistence.NewGormCommissionEntryRepository(db.DB)
	payoutRepo := persistence.NewGormPayoutRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)
	outboxPublisher := event.NewOutboxPublisher(eventSerializer, event.WithMaxRetries(cfg.Outbox.MaxRetries))

	financeTx := persistence.NewGormTransactionScope(db.DB, outboxPublisher)
	vendorTx := persistence.NewGormVendorTransactionScope(db.DB, outboxPublisher)

	// Collaborators: statement archive, operator queue, payout executor
	var archive finance.StatementArchive = storage.NewNopStatementArchive(log)
	if cfg.Storage.Bucket != "" {
		s3Archive, err := storage.NewS3StatementArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize statement archive", zap.Error(err))
		}
		archive = s3Archive
	}

	var operatorQueue finance.OperatorQueue = notification.NewLogOperatorQueue(log)
	if cfg.Mail.Host != "" {
		mailQueue, err := notification.NewMailOperatorQueue(cfg.Mail, log)
		if err != nil {
			log.Fatal("Failed to initialize operator mail queue", zap.Error(err))
		}
		operatorQueue = mailQueue
	}

	payoutMetrics, err := telemetry.NewPayoutMetrics(telemetry.PayoutMetricsConfig{
		Meter:  tel.Meter("payouts"),
		Logger: log,
		Stats:  telemetry.NewGormLedgerStatsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize payout metrics", zap.Error(err))
	}
	defer payoutMetrics.Stop()
	if tel.MetricsEnabled() {
		payoutMetrics.StartPeriodicCollection(rootCtx, cfg.Telemetry.MetricsInterval)
	}

	// TODO: replace the sandbox with the bank transfer client once its API contract is signed
	executor := payoutexec.NewTracedExecutor(
		payoutexec.NewRateLimitedExecutor(
			payoutexec.NewSandboxExecutor(payoutexec.SandboxConfig{}, log),
			payoutexec.RateLimitConfig{
				RequestsPerSecond: cfg.Payout.ExecutorRPS,
				Burst:             cfg.Payout.ExecutorBurst,
				Timeout:           cfg.Payout.ExecutorTimeout,
			},
		),
		payoutMetrics,
		log,
	)

	// Application services
	vendorService := partnerapp.NewVendorService(vendorRepo, vendorTx, log)
	commissionService := financeapp.NewCommissionService(financeapp.CommissionServiceConfig{
		TxScope:        financeTx,
		EntryRepo:      entryRepo,
		VendorRepo:     vendorRepo,
		ApprovalPolicy: finance.ReturnWindowPolicy{Window: cfg.Payout.ReturnWindow},
		Logger:         log,
	})
	retryPolicy := finance.DefaultRetryPolicy()
	retryPolicy.MaxAttempts = cfg.Payout.MaxRetries
	if cfg.Payout.RetryBackoff > 0 {
		retryPolicy.BaseBackoff = cfg.Payout.RetryBackoff
	}
	payoutService := financeapp.NewPayoutService(financeapp.PayoutServiceConfig{
		TxScope:         financeTx,
		PayoutRepo:      payoutRepo,
		EntryRepo:       entryRepo,
		VendorRepo:      vendorRepo,
		Executor:        executor,
		FeePolicy:       finance.PercentageFeePolicy{Rate: cfg.Payout.FeeRate, Flat: cfg.Payout.FeeFlat},
		TaxPolicy:       finance.WithholdingTaxPolicy{Rate: cfg.Payout.WithholdingRate},
		RetryPolicy:     retryPolicy,
		OperatorQueue:   operatorQueue,
		CarryOver:       cfg.Payout.CarryOver,
		ExecutorTimeout: cfg.Payout.ExecutorTimeout,
		Logger:          log,
	})
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Event bus: inbound order events are deduplicated by event id
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		_ = idempotencyStore.Close()
	}()
	eventBus := event.NewInMemoryEventBus(log)
	inbound := []shared.EventHandler{
		financeapp.NewOrderCompletedHandler(commissionService, log),
		financeapp.NewReturnOrChargebackHandler(commissionService, log),
	}
	for _, h := range inbound {
		eventBus.Subscribe(event.NewIdempotentHandler(h, idempotencyStore, log))
	}
	payoutCompletedHandler := financeapp.NewPayoutCompletedHandler(payoutRepo, entryRepo, vendorRepo, archive, log)
	payoutFailedHandler := financeapp.NewPayoutFailedHandler(payoutRepo, operatorQueue, log)
	eventBus.Subscribe(payoutCompletedHandler)
	eventBus.Subscribe(payoutFailedHandler)
	eventBus.Subscribe(payoutMetrics)

	log.Info("Event handlers registered",
		zap.Strings("payout_completed_events", payoutCompletedHandler.EventTypes()),
		zap.Strings("payout_failed_events", payoutFailedHandler.EventTypes()),
		zap.Strings("metrics_events", payoutMetrics.EventTypes()),
	)

	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	if cfg.Outbox.Enabled {
		outboxConfig := event.DefaultOutboxProcessorConfig()
		outboxConfig.BatchSize = cfg.Outbox.BatchSize
		outboxConfig.PollInterval = cfg.Outbox.PollInterval
		outboxConfig.Backoff = shared.OutboxBackoff{Base: cfg.Outbox.RetryBase, Max: cfg.Outbox.RetryMaxDelay}
		outboxConfig.Retention = cfg.Outbox.CleanupRetention
		outboxConfig.StaleAfter = cfg.Outbox.StaleAfter
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, outboxConfig, log)
		if err := outboxProcessor.Start(rootCtx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
		log.Info("Outbox processor started",
			zap.Int("batch_size", outboxConfig.BatchSize),
			zap.Duration("poll_interval", outboxConfig.PollInterval),
			zap.Duration("retention", outboxConfig.Retention),
		)
	}

	// Scheduled jobs: daily batch, approval aging, retries, reconciliation.
	// The admin job endpoints answer 503 while these stay nil.
	var (
		jobLog     handler.JobLog
		jobTrigger handler.JobTrigger
	)
	if cfg.Scheduler.Enabled {
		schedConfig := scheduler.DefaultConfig()
		if cfg.Scheduler.Workers > 0 {
			schedConfig.Workers = cfg.Scheduler.Workers
		}
		if cfg.Scheduler.JobTimeout > 0 {
			schedConfig.JobTimeout = cfg.Scheduler.JobTimeout
		}
		schedConfig.RetryAttempts = cfg.Scheduler.RetryAttempts
		if cfg.Scheduler.RetryDelay > 0 {
			schedConfig.RetryDelay = cfg.Scheduler.RetryDelay
		}
		jobs := scheduler.NewPayoutJobExecutor(payoutService, commissionService, cfg.Payout.ReconcileAfter, payoutMetrics, log)
		sched, err := scheduler.NewScheduler(schedConfig, jobs, log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := sched.Start(rootCtx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		defer func() {
			if err := sched.Stop(context.Background()); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		triggerConfig := scheduler.DefaultCronTriggerConfig()
		triggerConfig.BatchHour = cfg.Scheduler.BatchHour
		triggerConfig.BatchMinute = cfg.Scheduler.BatchMinute
		if cfg.Scheduler.AgingInterval > 0 {
			triggerConfig.AgingInterval = cfg.Scheduler.AgingInterval
		}
		if cfg.Scheduler.RetryInterval > 0 {
			triggerConfig.RetryInterval = cfg.Scheduler.RetryInterval
		}
		if cfg.Scheduler.ReconcileInterval > 0 {
			triggerConfig.ReconcileInterval = cfg.Scheduler.ReconcileInterval
		}
		trigger := scheduler.NewCronTrigger(triggerConfig, sched, payoutService, log)
		if err := trigger.Start(rootCtx); err != nil {
			log.Fatal("Failed to start cron trigger", zap.Error(err))
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping cron trigger", zap.Error(err))
			}
		}()
		jobLog, jobTrigger = sched, trigger
		log.Info("Payout scheduler started",
			zap.Int("workers", schedConfig.Workers),
			zap.Int("batch_hour", triggerConfig.BatchHour),
			zap.Int("batch_minute", triggerConfig.BatchMinute),
		)
	}

	// HTTP
	middleware.SetupValidator()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName
	tracingConfig.Enabled = tel.TracingEnabled()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(tracingConfig),
		middleware.SpanAttributes(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(tel, log),
		middleware.ProfilingLabels(profiler.IsEnabled()),
		middleware.CORSWithConfig(corsConfig),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
	)

	routeMW := router.RouteMiddleware{}
	if cfg.HTTP.RateLimitEnabled {
		// A nil *redis.Client must not become a non-nil interface
		var limiterRedis redis.UniversalClient
		if redisClient != nil {
			limiterRedis = redisClient
		}
		for _, surface := range []struct {
			name string
			dst  *[]gin.HandlerFunc
		}{
			{"events", &routeMW.EventIntake},
			{"executor_callback", &routeMW.ExecutorCallback},
		} {
			limit, err := middleware.RateLimit(middleware.RateLimitConfig{
				Name:     surface.name,
				Requests: cfg.HTTP.RateLimitRequests,
				Window:   cfg.HTTP.RateLimitWindow,
				Redis:    limiterRedis,
				Logger:   log,
			})
			if err != nil {
				log.Fatal("Failed to create rate limiter", zap.String("surface", surface.name), zap.Error(err))
			}
			*surface.dst = append(*surface.dst, limit)
		}
	}
	routeMW.ExecutorCallback = append(routeMW.ExecutorCallback,
		middleware.VerifySignature(middleware.SignatureConfig{Secret: cfg.Payout.CallbackSecret}))
	if cfg.Payout.CallbackSecret == "" {
		log.Warn("Executor callback signature verification disabled")
	}

	checks := map[string]handler.HealthCheck{
		"database": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	router.Setup(engine, router.Handlers{
		Vendor:     handler.NewVendorHandler(vendorService),
		Commission: handler.NewCommissionHandler(commissionService),
		Payout:     handler.NewPayoutHandler(payoutService, cfg.Payout.ReconcileAfter),
		Event:      handler.NewEventHandler(eventBus, log),
		Outbox:     handler.NewOutboxHandler(outboxService),
		Jobs:       handler.NewJobsHandler(jobLog, jobTrigger),
		Health:     handler.NewHealthHandler(version, 0, checks),
	}, routeMW)

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

	// Graceful shutdown; deferred stops run in reverse start order
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
