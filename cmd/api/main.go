package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/sav-service/internal/api/http"
	"github.com/spec-kit/sav-service/internal/api/http/handlers"
	"github.com/spec-kit/sav-service/internal/auth"
	"github.com/spec-kit/sav-service/internal/config"
	"github.com/spec-kit/sav-service/internal/events"
	"github.com/spec-kit/sav-service/internal/notify"
	"github.com/spec-kit/sav-service/internal/observability"
	"github.com/spec-kit/sav-service/internal/persistence"
	"github.com/spec-kit/sav-service/internal/repository"
	"github.com/spec-kit/sav-service/internal/service"
	"github.com/spec-kit/sav-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	var (
		notifier    notify.Notifier
		deadLetters notify.DeadLetters
	)
	if redis.Enabled() {
		notifier = notify.NewRedisNotifier(redis.Client, cfg.Notification.Stream)
		deadLetters = notify.NewRedisDeadLetters(redis.Client, cfg.Notification.DeadLetterKey)
	} else {
		notifier = notify.NewLogNotifier(logger)
		deadLetters = notify.NewMemoryDeadLetters()
	}

	async := worker.NewAsyncNotifier(notifier, deadLetters, logger, metrics, worker.Options{
		Workers:   cfg.Notification.Workers,
		QueueSize: cfg.Notification.QueueSize,
		Timeout:   cfg.Notification.Timeout(),
	})
	async.Start()

	reporter, err := worker.NewDeadLetterReporter(cfg.Notification.ReportSchedule, deadLetters, logger)
	if err != nil {
		logger.Fatal("invalid notification report schedule", zap.Error(err))
	}
	reporter.Start()

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, async, logger).RegisterHandlers()

	deps := service.WorkflowDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	}
	ticketService := service.NewTicketService(deps)
	interventionService := service.NewInterventionService(deps)
	executionService := service.NewExecutionService(deps)

	authService := service.NewAuthService(cfg.Auth, store, logger)
	if err := authService.SeedAdmin(ctx, cfg.Auth.SeedAdminEmail, cfg.Auth.SeedAdminPassword); err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	checks := []handlers.DependencyCheck{{Name: "store", Ping: store.Ping}}
	if redis.Enabled() {
		checks = append(checks, handlers.DependencyCheck{Name: "redis", Ping: redis.Ping})
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Staff:          handlers.NewStaffHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, interventionService),
		Interventions:  handlers.NewInterventionsHandler(interventionService),
		WorkOrders:     handlers.NewWorkOrdersHandler(executionService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	reporter.Stop()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Notification.Timeout()*2)
	defer drainCancel()
	if err := async.Stop(drainCtx); err != nil {
		logger.Warn("notification queue not drained", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) repository.Store {
	if cfg.Store.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore()
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	return repository.NewPostgresStore(pg.PoolHandle())
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
