package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/ayurwell-scheduler/cmd/mainconfig"
	"github.com/wolfman30/ayurwell-scheduler/internal/api/router"
	"github.com/wolfman30/ayurwell-scheduler/internal/app/bootstrap"
	"github.com/wolfman30/ayurwell-scheduler/internal/availability"
	"github.com/wolfman30/ayurwell-scheduler/internal/booking"
	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/ayurwell-scheduler/internal/http/middleware"
	"github.com/wolfman30/ayurwell-scheduler/internal/lifecycle"
	"github.com/wolfman30/ayurwell-scheduler/internal/notify"
	"github.com/wolfman30/ayurwell-scheduler/internal/observability/metrics"
	"github.com/wolfman30/ayurwell-scheduler/internal/queries"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting ayurwell scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"notify_transport", cfg.NotifyTransport,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	app.start(ctx)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	cancel()
	app.stop(shutdownCtx, logger)

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// application is the assembled API process: the HTTP handler plus the
// background loops that must run beside it.
type application struct {
	handler    http.Handler
	background []func(ctx context.Context)
	worker     *notify.Worker
	closers    []func() error
}

func (a *application) start(ctx context.Context) {
	for _, run := range a.background {
		go run(ctx)
	}
	if a.worker != nil {
		a.worker.Start(ctx)
	}
}

func (a *application) stop(ctx context.Context, logger *logging.Logger) {
	if a.worker != nil {
		done := make(chan struct{})
		go func() {
			a.worker.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Error("notify worker shutdown timed out", "error", ctx.Err())
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
}

func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewSchedulingMetrics(reg)
}

// needsAWS reports whether any configured integration talks to AWS.
func needsAWS(cfg *appconfig.Config) bool {
	switch cfg.NotifyTransport {
	case bootstrap.TransportSQS, bootstrap.TransportOutbox:
		return true
	}
	return cfg.AuditTable != "" || (cfg.NotifyTransport == bootstrap.TransportMemory && cfg.EmailProvider == "ses")
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*application, error) {
	app := &application{}
	metricsHandler, schedMetrics := setupMetrics()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		app.closers = append(app.closers, func() error { pool.Close(); return nil })
	}
	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	var awsCfg aws.Config
	if needsAWS(cfg) {
		awsCfg, err = mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
	}

	stores, err := bootstrap.BuildStores(cfg, pool, logger)
	if err != nil {
		return nil, err
	}
	loc := bootstrap.LoadLocation(cfg, logger)

	index, err := availability.NewIndex(stores.Directory, cfg.SlotGranularity,
		availability.WithCache(bootstrap.BuildAvailabilityCache(cfg, redisClient, logger)),
		availability.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	dir := directory.NewService(stores.Directory, logger, directory.WithAvailabilityInvalidator(index))

	notifierDeps := bootstrap.NotifierDeps{Pool: pool, Logger: logger}
	if needsAWS(cfg) {
		notifierDeps.SQS = sqs.NewFromConfig(awsCfg)
	}
	notifierSetup, err := bootstrap.BuildNotifier(cfg, notifierDeps)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, notifierSetup.Close)
	dispatcher := events.NewDispatcher(notifierSetup.Notifier, logger,
		events.WithTimeout(cfg.NotifyTimeout),
		events.WithMetrics(schedMetrics),
	)
	if deliverer := notifierSetup.Deliverer(cfg, logger); deliverer != nil {
		app.background = append(app.background, deliverer.Start)
	}

	var dynamoClient *dynamodb.Client
	if cfg.AuditTable != "" {
		dynamoClient = dynamodb.NewFromConfig(awsCfg)
	}
	trail := bootstrap.BuildAuditTrail(cfg, dynamoClient, logger)

	if notifierSetup.Transport == bootstrap.TransportMemory {
		var sesClient *sesv2.Client
		if cfg.EmailProvider == "ses" {
			sesClient = sesv2.NewFromConfig(awsCfg)
		}
		sender, err := bootstrap.BuildEmailSender(cfg, sesClient, logger)
		if err != nil {
			return nil, err
		}
		app.worker = notify.NewWorker(notifierSetup.Queue, stores.Processed,
			notify.NewService(sender, dir, logger), logger,
			notify.WithWorkerCount(cfg.WorkerCount),
			notify.WithWorkerMetrics(schedMetrics),
		)
		logger.Info("notify worker running in-process")
	}

	bookingOpts := []booking.Option{
		booking.WithEmitter(dispatcher),
		booking.WithMaxPendingPerDoctor(cfg.BookingMaxPendingPerDoctor),
		booking.WithLocation(loc),
		booking.WithLogger(logger),
		booking.WithMetrics(schedMetrics),
	}
	if limiter := bootstrap.BuildBookingLimiter(cfg, redisClient, logger); limiter != nil {
		bookingOpts = append(bookingOpts, booking.WithLimiter(limiter))
	}
	bookingSvc := booking.NewService(dir, index, stores.Appointments, bookingOpts...)
	manager := lifecycle.NewManager(stores.Appointments,
		lifecycle.WithEmitter(dispatcher),
		lifecycle.WithAuditTrail(trail),
		lifecycle.WithMetrics(schedMetrics),
		lifecycle.WithLocation(loc),
		lifecycle.WithLogger(logger),
	)
	q := queries.NewService(stores.Appointments, dir, index)

	if cfg.ActorJWTSecret == "" || cfg.AdminJWTSecret == "" {
		logger.Warn("jwt secrets not configured; authenticated routes will reject every request")
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		app.background = append(app.background, func(ctx context.Context) { limiter.Run(ctx, time.Minute) })
	}

	app.handler = router.New(&router.Config{
		Logger:             logger,
		Appointments:       handlers.NewAppointmentsHandler(bookingSvc, manager, stores.Appointments, trail, logger),
		Doctors:            handlers.NewDoctorsHandler(dir, q, logger),
		Patients:           handlers.NewPatientsHandler(dir, q, logger),
		AdminDoctors:       handlers.NewAdminDoctorsHandler(dir, logger),
		Users:              dir,
		ActorAuthSecret:    cfg.ActorJWTSecret,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
		RequestTimeout:     15 * time.Second,
	})
	return app, nil
}
