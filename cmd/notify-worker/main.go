package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"

	"github.com/wolfman30/ayurwell-scheduler/cmd/mainconfig"
	"github.com/wolfman30/ayurwell-scheduler/internal/app/bootstrap"
	appconfig "github.com/wolfman30/ayurwell-scheduler/internal/config"
	"github.com/wolfman30/ayurwell-scheduler/internal/directory"
	"github.com/wolfman30/ayurwell-scheduler/internal/events"
	"github.com/wolfman30/ayurwell-scheduler/internal/notify"
	"github.com/wolfman30/ayurwell-scheduler/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		logger.Error("NOTIFY_QUEUE_URL is required")
		os.Exit(1)
	}
	if cfg.StoreBackend != "postgres" {
		logger.Error("notify worker reads contacts from postgres; set STORE_BACKEND=postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsConfig, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil || pool == nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	stores, err := bootstrap.BuildStores(cfg, pool, logger)
	if err != nil {
		logger.Error("failed to build stores", "error", err)
		os.Exit(1)
	}

	var sesClient *sesv2.Client
	if cfg.EmailProvider == "ses" {
		sesClient = sesv2.NewFromConfig(awsConfig)
	}
	sender, err := bootstrap.BuildEmailSender(cfg, sesClient, logger)
	if err != nil {
		logger.Error("failed to build email sender", "error", err)
		os.Exit(1)
	}

	queue := events.NewSQSQueue(sqs.NewFromConfig(awsConfig), cfg.NotifyQueueURL)
	dir := directory.NewService(stores.Directory, logger)
	worker := notify.NewWorker(
		queue,
		stores.Processed,
		notify.NewService(sender, dir, logger),
		logger,
		notify.WithWorkerCount(cfg.WorkerCount),
	)

	worker.Start(ctx)
	logger.Info("notify worker started", "workers", cfg.WorkerCount, "email_provider", cfg.EmailProvider)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down notify worker...")
	cancel()

	doneCtx, doneCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer doneCancel()

	waitCh := make(chan struct{})
	go func() {
		worker.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Info("notify worker stopped")
	case <-doneCtx.Done():
		logger.Error("notify worker shutdown timed out", "error", doneCtx.Err())
	}
}
