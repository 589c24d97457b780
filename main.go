package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/config"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/batch"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/consumer"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/handler"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/integration"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/jobs"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/middleware"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/repository"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/pkg/database"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/pkg/logger"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/pkg/rabbitmq"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/pkg/redisclient"
	"github.com/labstack/echo/v4"
	echoMw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db := database.NewPostgresDB(cfg.DSN())
	loc := cfg.Location()

	// Repositories
	bookingRepo := repository.NewBookingRepository(db)
	queueRepo := repository.NewQueueRepository(db)
	commerceRepo := repository.NewCommerceRepository(db)
	clientRepo := repository.NewClientRepository(db)

	var ledger repository.BlockUsageLedger
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		rdb, err := redisclient.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		ledger = repository.NewRedisBlockUsageLedger(rdb, "")
	default:
		ledger = repository.NewBlockUsageRepository(db)
	}
	log.Info("block usage ledger ready", zap.String("backend", cfg.LedgerBackend))

	// RabbitMQ publisher: domain events and outbound commands
	publisher, err := rabbitmq.NewPublisher(cfg.RabbitURL, log)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer publisher.Close()

	// RabbitMQ consumer: sync queues and commerces from the commerce service
	if cfg.CatalogSyncEnabled {
		mqConsumer, err := rabbitmq.NewConsumer(cfg.RabbitURL)
		if err != nil {
			log.Fatal("failed to connect catalog consumer", zap.Error(err))
		}
		defer mqConsumer.Close()

		msgs, err := mqConsumer.Consume()
		if err != nil {
			log.Fatal("failed to start consuming", zap.Error(err))
		}
		consumer.NewCatalogConsumer(queueRepo, commerceRepo, log).Start(msgs)
	}

	// Services
	deps := service.Deps{
		Bookings:     bookingRepo,
		Queues:       queueRepo,
		Commerces:    commerceRepo,
		Clients:      clientRepo,
		Ledger:       ledger,
		Notifier:     integration.NewNotifications(publisher, nil),
		Events:       publisher,
		Attentions:   integration.NewAttentions(repository.NewAttentionRepository(db), nil),
		Packages:     integration.NewPackages(repository.NewPackageRepository(db)),
		Incomes:      integration.NewIncomes(repository.NewIncomeRepository(db), nil),
		Telemedicine: integration.NewTelemedicine(publisher),
		Waitlist:     integration.NewWaitlist(publisher),
		Consent:      integration.NewConsent(publisher),
		Logger:       log,
	}
	opts := []service.Option{service.WithHoldTTL(cfg.HoldTTL), service.WithLocation(loc)}
	bookingSvc := service.NewBookingService(deps, opts...)
	lifecycleSvc := service.NewLifecycleService(deps, opts...)

	// Batch jobs
	runner := batch.NewRunner(batch.Options{
		MaxInFlight: cfg.BatchMaxInFlight,
		Spacing:     cfg.BatchSpacing,
		Logger:      log.Named("batch"),
	})
	bookingJobs := jobs.New(jobs.Deps{
		Commerces: commerceRepo,
		Bookings:  bookingRepo,
		Clients:   clientRepo,
		Lifecycle: lifecycleSvc,
		Notifier:  deps.Notifier,
		Runner:    runner,
		Logger:    log,
	}, jobs.Config{StalePendingAfter: cfg.StalePendingAfter, Location: loc})

	scheduler := jobs.NewScheduler(bookingJobs, loc, cfg.JobTimeout, log)
	if err := scheduler.Schedule(map[string]string{
		jobs.ProcessToday:       cfg.ProcessCron,
		jobs.ConfirmReminders:   cfg.ReminderCron,
		jobs.CancelStalePending: cfg.StaleCancelCron,
	}); err != nil {
		log.Fatal("failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler(log)
	e.Use(echoMw.RequestID())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(echoMw.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "booking-service"})
	})

	handler.NewBookingHandler(bookingSvc, lifecycleSvc).RegisterRoutes(e)
	handler.NewJobHandler(bookingJobs).RegisterRoutes(e)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("booking service starting", zap.String("port", cfg.ServerPort))
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	scheduler.Stop()
}
