package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	financeapp "github.com/marketplace/payouts/internal/application/finance"
	"github.com/marketplace/payouts/internal/domain/finance"
	"github.com/marketplace/payouts/internal/domain/shared"
	"github.com/marketplace/payouts/internal/infrastructure/cache"
	"github.com/marketplace/payouts/internal/infrastructure/config"
	"github.com/marketplace/payouts/internal/infrastructure/event"
	"github.com/marketplace/payouts/internal/infrastructure/logger"
	"github.com/marketplace/payouts/internal/infrastructure/orderimport"
	"github.com/marketplace/payouts/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

// run replays an export and returns the process exit code: 0 when every row
// was applied, 1 when any row was rejected or failed, 2 on usage errors
func run() int {
	var (
		file      string
		kind      string
		dryRun    bool
		maxErrors int
		maxRows   int
		logLevel  string
	)

	flag.StringVar(&file, "file", "", "Path to the order platform CSV export")
	flag.StringVar(&kind, "kind", string(orderimport.KindCompleted), "Export kind (completed, returns)")
	flag.BoolVar(&dryRun, "dry-run", false, "Validate the file without touching the ledger")
	flag.IntVar(&maxErrors, "max-errors", 100, "Maximum row errors to report")
	flag.IntVar(&maxRows, "max-rows", 0, "Reject files with more data rows (0 = unlimited)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if file == "" {
		fmt.Fprintln(os.Stderr, "Usage: backfill -file <export.csv> [-kind completed|returns] [-dry-run]")
		flag.PrintDefaults()
		return 2
	}

	log, err := logger.New(logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	f, err := os.Open(file)
	if err != nil {
		log.Fatal("Failed to open export", zap.Error(err))
	}
	defer f.Close()

	result, err := orderimport.Read(f, orderimport.Kind(kind), orderimport.ReadOptions{
		MaxRows:   maxRows,
		MaxErrors: maxErrors,
	})
	if err != nil {
		log.Fatal("Failed to read export", zap.String("file", file), zap.Error(err))
	}
	for _, rowErr := range result.Errors.Errors() {
		log.Warn("Row rejected",
			zap.Int("line", rowErr.Line),
			zap.String("column", rowErr.Column),
			zap.String("code", rowErr.Code),
			zap.String("value", rowErr.Value),
			zap.String("message", rowErr.Message),
		)
	}
	log.Info("Export parsed",
		zap.String("file", file),
		zap.String("kind", kind),
		zap.Int("rows", result.Rows),
		zap.Int("events", len(result.Events)),
		zap.Int("row_errors", result.Errors.Total()),
	)
	if dryRun {
		return exitCode(result.Errors.HasErrors())
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := persistence.Open(ctx, &cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	// Ledger writes go through the outbox so the running server relays their events
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Outbox.MaxRetries))

	commissionService := financeapp.NewCommissionService(financeapp.CommissionServiceConfig{
		TxScope:        persistence.NewGormTransactionScope(db.DB, outboxPublisher),
		EntryRepo:      persistence.NewGormCommissionEntryRepository(db.DB),
		VendorRepo:     persistence.NewGormVendorRepository(db.DB),
		ApprovalPolicy: finance.ReturnWindowPolicy{Window: cfg.Payout.ReturnWindow},
		Logger:         log,
	})

	// Shares the server's idempotency store when Redis is configured, so
	// events the server already consumed are skipped here too
	redisClient, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis unavailable, claims stay local to this run", zap.Error(err))
	} else if redisClient != nil {
		defer func() {
			_ = redisClient.Close()
		}()
	}
	store := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		_ = store.Close()
	}()

	handlers := map[string]shared.EventHandler{}
	for _, h := range []shared.EventHandler{
		financeapp.NewOrderCompletedHandler(commissionService, log),
		financeapp.NewReturnOrChargebackHandler(commissionService, log),
	} {
		wrapped := event.NewIdempotentHandler(h, store, log)
		for _, t := range wrapped.EventTypes() {
			handlers[t] = wrapped
		}
	}

	var processed, failed int
	for _, evt := range result.Events {
		if ctx.Err() != nil {
			log.Warn("Backfill interrupted", zap.Int("remaining", len(result.Events)-processed-failed))
			break
		}
		if err := handlers[evt.EventType()].Handle(ctx, evt); err != nil {
			failed++
			log.Error("Event replay failed",
				zap.String("event_id", evt.EventID().String()),
				zap.String("event_type", evt.EventType()),
				zap.String("code", shared.CodeOf(err)),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	log.Info("Backfill finished",
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Int("row_errors", result.Errors.Total()),
	)
	return exitCode(failed > 0 || processed+failed < len(result.Events) || result.Errors.HasErrors())
}

func exitCode(withErrors bool) int {
	if withErrors {
		return 1
	}
	return 0
}
