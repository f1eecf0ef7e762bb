package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/leaflet/internal/config"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/repository"
	"github.com/timmy/leaflet/internal/service"
	"github.com/timmy/leaflet/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	workers := flag.Int("workers", 0, "Number of consumers (overrides ingest.workers)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}
	if *workers > 0 {
		cfg.Ingest.Workers = *workers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	rdb, err := queue.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer rdb.Close()

	taskQueue := queue.NewClient(rdb, queue.Config{
		Stream: cfg.Redis.Stream,
		Group:  cfg.Redis.Group,
	}, appLogger)
	if err := taskQueue.EnsureGroup(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure consumer group")
	}

	documentRepo := repository.NewDocumentRepository(db)
	tracker := service.NewJobTracker(repository.NewJobRepository(db), appLogger)
	worker := service.NewIngestWorker(
		objectStorage,
		ingest.NewOrchestrator(appLogger),
		ingest.NewPersister(documentRepo, objectStorage, appLogger, &ingest.PersisterConfig{
			Concurrency: cfg.Ingest.UploadConcurrency,
		}),
		tracker,
		repository.NewPublicationRepository(db),
		appLogger,
		&service.WorkerConfig{TaskTimeout: cfg.Ingest.TaskTimeout},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, draining workers...")
		cancel()
	}()

	if pending, err := taskQueue.Pending(ctx); err == nil {
		appLogger.WithField("pending", pending).Info("Consumer group state")
	}

	// Jobs whose task was lost never finish; surface them for an operator.
	staleAfter := 2 * cfg.Ingest.TaskTimeout
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	if stale, err := tracker.Stale(ctx, staleAfter, 100); err != nil {
		appLogger.WithError(err).Warn("Failed to list stale jobs")
	} else {
		for _, job := range stale {
			appLogger.WithFields(logger.Fields{
				logger.FieldJobID:    job.ID,
				logger.FieldReaderID: job.ReaderID,
				"published":          job.Published,
			}).Warn("Job pending past its deadline")
		}
	}

	worker.Run(ctx, taskQueue, cfg.Ingest.Workers)
}
